// Package server собирает процесс Conduit из настроек и описания flows.
//
// Build проверяет описание и компилирует flows без внешних подключений
// (используется командами validate и plan). New дополнительно открывает
// хранилище, брокер и трекер взаимодействий; Run обслуживает HTTP
// до отмены контекста.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/Conduit/internal/api"
	"github.com/shaiso/Conduit/internal/catalog"
	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/notify"
	"github.com/shaiso/Conduit/internal/repo"
	"github.com/shaiso/Conduit/internal/state"
	"github.com/shaiso/Conduit/internal/steps"
	"github.com/shaiso/Conduit/internal/telemetry"
	"github.com/shaiso/Conduit/internal/transport"
)

// ShutdownTimeout — время на завершение активных запросов.
const ShutdownTimeout = 10 * time.Second

// Build разбирает описание и компилирует flows.
//
// Flows без app получают appName. recorder может быть nil.
func Build(def *domain.Definition, appName string, client transport.Doer, recorder steps.Recorder, logger *slog.Logger) (*engine.Engine, []*domain.FlowGraph, error) {
	for i := range def.Flows {
		if def.Flows[i].App == "" {
			def.Flows[i].App = appName
		}
	}

	graphs, err := engine.Parse(def)
	if err != nil {
		return nil, nil, err
	}

	dispatcher := steps.NewDispatcher(steps.Config{
		Client:   client,
		Catalog:  catalog.FromDefinition(def),
		Recorder: recorder,
		Logger:   logger,
	})

	e, err := engine.New(engine.Config{
		Graphs:     graphs,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return e, graphs, nil
}

// Server — собранный процесс.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	engine   *engine.Engine
	store    repo.Store
	notifier *notify.Notifier
	conn     *mq.Connection
	http     *http.Server

	shutdownTracing func(context.Context) error
}

// New подключает внешние зависимости и компилирует flows.
//
// При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, def *domain.Definition, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.shutdownTracing, err = telemetry.SetupTracing(ctx, cfg.OTelEndpoint, cfg.OTelService)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	s.store, err = repo.Open(ctx, repo.OpenConfig{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		BadgerPath:  cfg.BadgerPath,
		RedisURL:    cfg.RedisURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "driver", cfg.StoreDriver)

	client := transport.NewClient(transport.Config{
		BaseURL:         cfg.GatewayURL,
		Timeout:         cfg.RemoteTimeout,
		MaxResponseBody: cfg.MaxBodyBytes,
	})

	trackers, err := s.trackers(ctx, client)
	if err != nil {
		return nil, err
	}

	recorderCfg := state.RecorderConfig{
		Store:   s.store,
		Maskers: state.MaskersFromDefinition(def),
		Logger:  logger,
	}
	if len(trackers) > 0 {
		s.notifier = notify.New(notify.Config{
			Tracker: trackers,
			Retries: cfg.NotifyRetries,
			Rate:    cfg.NotifyRate,
			Logger:  logger,
		})
		recorderCfg.Notifier = s.notifier
	}

	var graphs []*domain.FlowGraph
	s.engine, graphs, err = Build(def, cfg.AppName, client, state.NewRecorder(recorderCfg), logger)
	if err != nil {
		return nil, err
	}

	if err := recorderCfg.Maskers.Check(graphs...); err != nil {
		if cfg.StrictMasking {
			return nil, err
		}
		logger.Warn("stage formats without masking", "error", err)
	}

	handler := api.NewHandler(api.Config{
		Engine:         s.engine,
		RequestTimeout: cfg.RequestTimeout,
		MaxRequestBody: cfg.MaxBodyBytes,
		Logger:         logger,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// trackers собирает получателей обновлений взаимодействий.
func (s *Server) trackers(ctx context.Context, client transport.Doer) (notify.Multi, error) {
	var trackers notify.Multi

	if s.cfg.TrackerURL != "" {
		trackers = append(trackers, notify.NewHTTPTracker(s.cfg.TrackerURL, s.cfg.TrackerToken, client))
	}

	if s.cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(s.cfg.RabbitMQURL, s.logger)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		s.conn = conn

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		trackers = append(trackers, notify.NewEventTracker(mq.NewPublisher(conn, s.logger)))
	}

	return trackers, nil
}

// Engine возвращает скомпилированный engine.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Run обслуживает HTTP до отмены ctx, затем завершает запросы
// и освобождает ресурсы.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	// Обработчик уведомлений переживает отмену ctx: запросы, завершающиеся
	// во время Shutdown, ещё ставят задачи в очередь.
	if s.notifier != nil {
		s.notifier.Start(context.WithoutCancel(ctx))
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", "error", err)
	}

	if s.notifier != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancelDrain()
		if err := s.notifier.Drain(drainCtx); err != nil {
			s.logger.Warn("notifier drain interrupted", "error", err, "pending", s.notifier.Len())
		}
	}
	return nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (s *Server) close() {
	if s.notifier != nil {
		s.notifier.Stop()
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("close rabbitmq connection", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close store", "error", err)
		}
	}
	if s.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Warn("shutdown tracing", "error", err)
		}
	}
	s.logger.Info("stopped")
}
