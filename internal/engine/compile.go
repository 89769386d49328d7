package engine

import (
	"fmt"
	"log/slog"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/expr"
	"github.com/shaiso/Conduit/internal/steps"
)

// node — скомпилированная стадия.
type node struct {
	stage   *domain.Stage
	name    string
	handler steps.Handler

	// next — ветки успешного выполнения в порядке объявления.
	next []*branch

	// onError — стадия, получающая управление при статусе ≥400.
	onError *node
}

// branch — ребро с условием. Условие охраняет всё поддерево target.
type branch struct {
	guard  *expr.Guard
	target *node
}

// Pipeline — исполняемый граф одного flow.
//
// Pipeline неизменяем после Compile и безопасен для конкурентных запросов:
// всё состояние выполнения создаётся заново в каждом Execute.
type Pipeline struct {
	graph  *domain.FlowGraph
	entry  []*branch
	nodes  map[string]*node
	order  []string
	logger *slog.Logger
}

// Compile строит Pipeline из графа и реестра обработчиков.
//
// Обход в глубину по рёбрам успеха в порядке объявления, начиная
// со входной стадии. Стадия, уже встреченная в этом обходе, не
// компилируется повторно: ребро ссылается на существующий узел,
// поэтому обратные рёбра и сходящиеся пути не приводят к бесконечной
// рекурсии. Стадия из ребра ошибки компилируется так же, один раз.
//
// Отсутствие обработчика для достижимой стадии — ошибка.
func Compile(g *domain.FlowGraph, reg *steps.Registry, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &compiler{
		graph:   g,
		reg:     reg,
		visited: make(map[string]*node, len(g.Stages)),
	}

	entry, err := c.branches(g.EntryID, g.Entry)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		graph:  g,
		entry:  entry,
		nodes:  c.visited,
		order:  c.order,
		logger: logger,
	}, nil
}

// compiler — состояние одного прохода Compile.
type compiler struct {
	graph   *domain.FlowGraph
	reg     *steps.Registry
	visited map[string]*node
	order   []string
}

// node компилирует стадию id и её потомков.
func (c *compiler) node(id string) (*node, error) {
	if n, ok := c.visited[id]; ok {
		return n, nil
	}

	stage := c.graph.Stage(id)
	if stage == nil {
		return nil, NewValidationError(c.graph.ID, id, "id",
			fmt.Sprintf("unknown stage: %s", id), ErrUnknownTarget)
	}

	name := domain.CamelCase(stage.ID)
	h, err := c.reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("flow %s: stage %s: %w", c.graph.ID, stage.ID, err)
	}

	n := &node{stage: stage, name: name, handler: h}
	c.visited[id] = n
	c.order = append(c.order, id)

	if n.next, err = c.branches(id, stage.OnSuccess); err != nil {
		return nil, err
	}

	if stage.OnError != nil {
		if n.onError, err = c.node(stage.OnError.Target); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// branches компилирует рёбра стадии from.
func (c *compiler) branches(from string, edges []domain.Edge) ([]*branch, error) {
	out := make([]*branch, 0, len(edges))
	for _, e := range edges {
		guard, err := expr.CompileGuard(e.Condition)
		if err != nil {
			return nil, NewValidationError(c.graph.ID, from, "condition",
				fmt.Sprintf("edge to %s: %v", e.Target, err), err)
		}

		target, err := c.node(e.Target)
		if err != nil {
			return nil, err
		}
		out = append(out, &branch{guard: guard, target: target})
	}
	return out, nil
}
