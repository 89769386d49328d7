package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/steps"
)

// DefaultMaxDepth — максимальная вложенность flows по умолчанию.
const DefaultMaxDepth = 16

// Config — настройки Engine.
type Config struct {
	// Graphs — графы flows (результат Parse).
	Graphs []*domain.FlowGraph

	// Dispatcher строит обработчики стадий.
	Dispatcher *steps.Dispatcher

	// MaxDepth — максимальная вложенность SUBFLOW и ITERATION.
	// 0 — DefaultMaxDepth.
	MaxDepth int

	Logger *slog.Logger
}

// Engine хранит скомпилированные pipelines всех flows и выполняет их.
//
// Реализует steps.FlowRunner для стадий SUBFLOW и ITERATION.
// После New только читается и безопасен для конкурентного использования.
type Engine struct {
	flows    map[string]*Pipeline
	nested   map[*domain.FlowGraph]*Pipeline
	order    []string
	maxDepth int
	logger   *slog.Logger
}

// New компилирует все flows и вложенные графы.
//
// Ошибка конфигурации любой стадии возвращается до приёма запросов.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Graphs) == 0 {
		return nil, ErrEmptyFlows
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("engine: dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	e := &Engine{
		flows:    make(map[string]*Pipeline, len(cfg.Graphs)),
		nested:   make(map[*domain.FlowGraph]*Pipeline),
		maxDepth: maxDepth,
		logger:   logger,
	}
	cfg.Dispatcher.SetRunner(e)

	for _, g := range cfg.Graphs {
		if _, exists := e.flows[g.ID]; exists {
			return nil, NewValidationError(g.ID, "", "id",
				fmt.Sprintf("duplicate flow ID: %s", g.ID), ErrDuplicateFlowID)
		}

		p, err := e.compile(cfg.Dispatcher, g)
		if err != nil {
			return nil, err
		}
		e.flows[g.ID] = p
		e.order = append(e.order, g.ID)
	}

	return e, nil
}

// compile компилирует граф и вложенные графы его стадий ITERATION.
func (e *Engine) compile(d *steps.Dispatcher, g *domain.FlowGraph) (*Pipeline, error) {
	reg, err := d.Build(g)
	if err != nil {
		return nil, err
	}

	p, err := Compile(g, reg, e.logger)
	if err != nil {
		return nil, err
	}

	for _, id := range g.Order {
		it, ok := g.Stages[id].Spec.(*domain.Iteration)
		if !ok {
			continue
		}
		np, err := e.compile(d, it.Graph)
		if err != nil {
			return nil, err
		}
		e.nested[it.Graph] = np
	}

	e.logger.Debug("flow compiled",
		"flow_id", g.ID,
		"stages", len(p.order),
		"unreachable", len(g.Order)-len(p.order),
	)

	return p, nil
}

// Pipeline возвращает pipeline flow по ID.
func (e *Engine) Pipeline(flowID string) (*Pipeline, bool) {
	p, ok := e.flows[flowID]
	return p, ok
}

// Pipelines возвращает pipelines flows в порядке объявления.
func (e *Engine) Pipelines() []*Pipeline {
	out := make([]*Pipeline, len(e.order))
	for i, id := range e.order {
		out[i] = e.flows[id]
	}
	return out
}

// RunFlow выполняет flow по ID.
func (e *Engine) RunFlow(ctx context.Context, flowID string, in *domain.Exchange) (*domain.Result, error) {
	p, ok := e.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}
	return e.run(ctx, p, in)
}

// RunGraph выполняет вложенный граф стадии ITERATION.
func (e *Engine) RunGraph(ctx context.Context, g *domain.FlowGraph, in *domain.Exchange) (*domain.Result, error) {
	p, ok := e.nested[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCompiled, g.ID)
	}
	return e.run(ctx, p, in)
}

func (e *Engine) run(ctx context.Context, p *Pipeline, in *domain.Exchange) (*domain.Result, error) {
	depth := depthFrom(ctx) + 1
	if depth > e.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrMaxDepth, p.graph.ID, depth)
	}
	return p.Execute(withDepth(ctx, depth), in), nil
}

type depthKey struct{}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}
