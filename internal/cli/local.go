package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/server"
	"github.com/shaiso/Conduit/internal/telemetry"
	"github.com/shaiso/Conduit/internal/transport"
)

// NewServeCmd создаёт команду запуска HTTP сервера flows.
//
// Настройки читаются из окружения (и .env), описание — из FLOW_DEFINITION
// или флага --definition.
func NewServeCmd() *cobra.Command {
	var definition string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve flows over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.SetupLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if definition != "" {
				cfg.DefinitionPath = definition
			}

			def, err := config.LoadDefinition(cfg.DefinitionPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv, err := server.New(ctx, cfg, def, logger)
			if err != nil {
				return err
			}

			logger.Info("starting conduit",
				"flows", len(srv.Engine().Pipelines()),
				"addr", cfg.Addr(),
			)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&definition, "definition", "", "Flow definition file (default $FLOW_DEFINITION)")

	return cmd
}

// NewValidateCmd создаёт команду проверки описания flows.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var definition string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a flow definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			e, err := compileDefinition(definition)
			if err != nil {
				return err
			}

			pipelines := e.Pipelines()
			headers := []string{"ID", "PATH", "STAGES"}
			rows := make([][]string, len(pipelines))
			summary := make([]map[string]any, len(pipelines))
			for i, p := range pipelines {
				g := p.Graph()
				rows[i] = []string{g.ID, g.Path, strconv.Itoa(len(p.Stages()))}
				summary[i] = map[string]any{"id": g.ID, "path": g.Path, "stages": p.Stages()}
			}

			out.Print(headers, rows, summary)
			out.Success(fmt.Sprintf("Definition is valid: %d flow(s)", len(pipelines)))
			return nil
		},
	}

	cmd.Flags().StringVar(&definition, "definition", os.Getenv("FLOW_DEFINITION"), "Flow definition file")

	return cmd
}

// NewPlanCmd создаёт команду вывода порядка обхода flows.
func NewPlanCmd(outputFn func() *Output) *cobra.Command {
	var definition string
	var flowID string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the compiled traversal plan of flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			e, err := compileDefinition(definition)
			if err != nil {
				return err
			}

			pipelines := e.Pipelines()
			if flowID != "" {
				p, ok := e.Pipeline(flowID)
				if !ok {
					return fmt.Errorf("%w: %s", engine.ErrUnknownFlow, flowID)
				}
				pipelines = []*engine.Pipeline{p}
			}

			for _, p := range pipelines {
				out.Text(p.Describe())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&definition, "definition", os.Getenv("FLOW_DEFINITION"), "Flow definition file")
	cmd.Flags().StringVar(&flowID, "flow", "", "Only this flow")

	return cmd
}

// compileDefinition читает и компилирует описание без внешних подключений.
func compileDefinition(path string) (*engine.Engine, error) {
	def, err := config.LoadDefinition(path)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, _, err := server.Build(def, "", transport.NewClient(transport.Config{}), nil, logger)
	return e, err
}

// NewEventsCmd создаёт команду чтения событий взаимодействий из RabbitMQ.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	var url string
	var prefetch int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow interaction events from RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := telemetry.SetupLogger()

			conn, err := mq.NewConnection(url, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}
			logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Prefetch: prefetch,
				Handler: func(_ context.Context, task domain.InteractionTask) error {
					out.Event(task)
					return nil
				},
			})

			err = consumer.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&url, "rabbitmq-url", mq.DefaultURL(), "RabbitMQ URL")
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "Messages to prefetch")

	return cmd
}
