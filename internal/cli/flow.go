package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для работы с flows запущенного сервера.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect and invoke flows on a running server",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowInvokeCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			out.Flows(flows)
			return nil
		},
	}
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow stages and traversal plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			out.Flow(flow)
			return nil
		},
	}
}

func newFlowInvokeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var file string
	var contentType string
	var interactionID string
	var txnID string

	cmd := &cobra.Command{
		Use:   "invoke PATH",
		Short: "Invoke a flow by its HTTP path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			body, err := readBody(data, file)
			if err != nil {
				return err
			}

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			res, err := client.Invoke(path, InvokeOpts{
				Body:          body,
				ContentType:   contentType,
				InteractionID: interactionID,
				TxnID:         txnID,
			})
			if err != nil {
				return err
			}

			out.Result(res)

			if res.StatusCode >= 400 {
				return fmt.Errorf("flow returned HTTP %d", res.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body (JSON)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read request body from file (- for stdin)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Request content type (default application/json)")
	cmd.Flags().StringVar(&interactionID, "interaction-id", "", "Interaction ID")
	cmd.Flags().StringVar(&txnID, "txn-id", "", "Transaction ID (generated by server if empty)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")

	return cmd
}

// readBody возвращает тело запроса из флага --data или файла.
func readBody(data, file string) ([]byte, error) {
	switch file {
	case "":
		return []byte(data), nil
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(file)
	}
}
