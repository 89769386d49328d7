// Conduit — исполнитель графов интеграционных стадий.
//
// Использование:
//
//	conduit [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	serve     HTTP сервер flows
//	validate  Проверка файла описания
//	plan      Порядок обхода flows
//	events    События взаимодействий из RabbitMQ
//	flow      Flows запущенного сервера
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Conduit — integration flow runtime",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:31000", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewServeCmd(),
		cli.NewValidateCmd(outputFn),
		cli.NewPlanCmd(outputFn),
		cli.NewEventsCmd(outputFn),
		cli.NewFlowCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
