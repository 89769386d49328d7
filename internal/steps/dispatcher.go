package steps

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shaiso/Conduit/internal/catalog"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/telemetry"
	"github.com/shaiso/Conduit/internal/transport"
)

// Handler выполняет стадию над snapshot st.
//
// Handler переводит st в SUCCESS или ERROR и сохраняет его ровно один раз,
// в том числе при панике. Ошибка возвращается только для сбоя выполнения
// (ErrExecutionFault); неуспешный ответ — это Result с кодом ≥400.
type Handler func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error)

// Recorder сохраняет snapshot после выполнения стадии.
type Recorder interface {
	Record(ctx context.Context, app string, st *domain.ExecutionState)
}

// FlowRunner выполняет дочерние flows. Реализуется engine.
type FlowRunner interface {
	// RunFlow выполняет flow по ID.
	RunFlow(ctx context.Context, flowID string, in *domain.Exchange) (*domain.Result, error)

	// RunGraph выполняет вложенный граф стадии ITERATION.
	RunGraph(ctx context.Context, g *domain.FlowGraph, in *domain.Exchange) (*domain.Result, error)
}

// Dispatcher строит обработчики стадий.
type Dispatcher struct {
	client   transport.Doer
	catalog  catalog.Catalog
	runner   FlowRunner
	recorder Recorder
	logger   *slog.Logger
}

// Config — зависимости Dispatcher.
type Config struct {
	Client   transport.Doer
	Catalog  catalog.Catalog
	Recorder Recorder
	Logger   *slog.Logger
}

// NewDispatcher создаёт Dispatcher. FlowRunner задаётся через SetRunner.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:   cfg.Client,
		catalog:  cfg.Catalog,
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// SetRunner задаёт исполнителя дочерних flows.
func (d *Dispatcher) SetRunner(r FlowRunner) {
	d.runner = r
}

// Build создаёт реестр обработчиков всех стадий графа.
//
// Ошибки конфигурации стадий и совпадения имён обнаруживаются здесь,
// до приёма запросов.
func (d *Dispatcher) Build(g *domain.FlowGraph) (*Registry, error) {
	reg := NewRegistry()
	for _, id := range g.Order {
		stage := g.Stages[id]

		h, err := d.Handler(g, stage)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(domain.CamelCase(stage.ID), h); err != nil {
			return nil, fmt.Errorf("flow %s: stage %s: %w", g.ID, stage.ID, err)
		}
	}
	return reg, nil
}

// Handler создаёт обработчик стадии.
func (d *Dispatcher) Handler(g *domain.FlowGraph, stage *domain.Stage) (Handler, error) {
	exec, err := d.strategy(stage)
	if err != nil {
		return nil, fmt.Errorf("flow %s: stage %s: %w", g.ID, stage.ID, err)
	}

	app := g.App
	kind := string(stage.Kind())

	return func(ctx context.Context, st *domain.ExecutionState) (res *domain.Result, err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("stage panic recovered",
					"flow_id", st.FlowID,
					"stage_id", st.StageID,
					"error", r,
					"stack", string(debug.Stack()),
				)
				res, err = nil, fmt.Errorf("%w: %v", ErrExecutionFault, r)
			}
			if err != nil && !st.Status.IsTerminal() {
				st.ResponseBody = map[string]any{"message": err.Error()}
				st.MarkFailed(500)
			}

			if d.recorder != nil {
				d.recorder.Record(ctx, app, st)
			}

			telemetry.StageDispatchTotal.WithLabelValues(kind, string(st.Status)).Inc()
			telemetry.StageDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		}()

		return exec(ctx, st)
	}, nil
}

// strategy выбирает исполнение по виду стадии.
func (d *Dispatcher) strategy(stage *domain.Stage) (Handler, error) {
	switch spec := stage.Spec.(type) {
	case *domain.RemoteCall:
		return d.remoteCall(spec)
	case *domain.Transform:
		return d.transform(spec)
	case *domain.Subflow:
		return d.subflow(spec)
	case *domain.Iteration:
		return d.iteration(spec)
	default:
		return nil, fmt.Errorf("%w: unsupported stage spec %T", ErrInvalidConfig, spec)
	}
}

// succeed завершает snapshot с кодом 200.
func succeed(st *domain.ExecutionState, body any, headers map[string]string) *domain.Result {
	st.ResponseBody = body
	st.ResponseHeaders = headers
	st.MarkSucceeded(200)
	return &domain.Result{StatusCode: 200, Body: body, Headers: headers}
}

// fail завершает snapshot ошибкой с кодом code.
func fail(st *domain.ExecutionState, code int, body any, headers map[string]string, kind domain.FailureKind) *domain.Result {
	st.ResponseBody = body
	st.ResponseHeaders = headers
	st.MarkFailed(code)
	return &domain.Result{StatusCode: code, Body: body, Headers: headers, Failure: kind}
}

// propagate завершает snapshot результатом дочернего выполнения.
func propagate(st *domain.ExecutionState, res *domain.Result) *domain.Result {
	if res.OK() {
		return succeed(st, res.Body, res.Headers)
	}
	return fail(st, res.StatusCode, res.Body, res.Headers, res.Failure)
}

// errorBody — тело ответа для ошибки err.
func errorBody(err error) map[string]any {
	return map[string]any{"message": err.Error()}
}
