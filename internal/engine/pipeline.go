package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/expr"
	"github.com/shaiso/Conduit/internal/state"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// Graph возвращает исходный граф.
func (p *Pipeline) Graph() *domain.FlowGraph {
	return p.graph
}

// Stages возвращает ID скомпилированных стадий в порядке обхода.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Execute выполняет flow для одного запроса.
//
// Каждая стадия выполняется не более одного раза. Условие ребра
// вычисляется перед входом в поддерево; ложное условие или ошибка
// вычисления пропускают его. При статусе ≥400 восстановимой ошибки
// управление переходит в стадию ребра ошибки вместо потомков, иначе
// выполнение прерывается с результатом упавшей стадии. Сбой выполнения
// даёт 500 и прерывает выполнение.
//
// Результат — результат последней выполненной стадии. Если ни одна
// стадия не выполнилась, возвращается 200 с телом входа.
func (p *Pipeline) Execute(ctx context.Context, in *domain.Exchange) *domain.Result {
	r := &execution{
		p:        p,
		logger:   telemetry.WithFlowID(telemetry.FromContextOr(ctx, p.logger), p.graph.ID),
		executed: make(map[string]bool, len(p.nodes)),
	}

	if stop := r.walk(ctx, p.entry, in); stop != nil {
		return stop
	}
	if r.last != nil {
		return r.last
	}
	return &domain.Result{StatusCode: 200, Body: in.EffectiveBody()}
}

// execution — состояние одного Execute.
type execution struct {
	p        *Pipeline
	logger   *slog.Logger
	executed map[string]bool
	last     *domain.Result
}

// walk обходит ветки. Возвращает результат, прерывающий выполнение, или nil.
func (r *execution) walk(ctx context.Context, branches []*branch, ex *domain.Exchange) *domain.Result {
	for _, b := range branches {
		if r.executed[b.target.stage.ID] {
			continue
		}
		if !r.allowed(b, ex) {
			continue
		}
		if stop := r.visit(ctx, b.target, ex); stop != nil {
			return stop
		}
	}
	return nil
}

// allowed вычисляет условие ветки.
func (r *execution) allowed(b *branch, ex *domain.Exchange) bool {
	ok, err := b.guard.Eval(expr.Scope{
		Body:       ex.EffectiveBody(),
		Headers:    ex.Headers,
		StatusCode: ex.StatusCode,
		Query:      ex.Query,
		Params:     ex.Params,
	})
	if err != nil {
		r.logger.Warn("edge condition failed",
			"stage_id", b.target.stage.ID,
			"condition", b.guard.String(),
			"error", err,
		)
		return false
	}
	return ok
}

// visit выполняет стадию n и её поддерево.
func (r *execution) visit(ctx context.Context, n *node, ex *domain.Exchange) *domain.Result {
	r.executed[n.stage.ID] = true

	ctx, span := telemetry.Tracer().Start(ctx, "stage "+n.name, trace.WithAttributes(
		attribute.String("flow.id", r.p.graph.ID),
		attribute.String("stage.id", n.stage.ID),
		attribute.String("stage.type", n.stage.Label()),
	))
	defer span.End()

	logger := telemetry.WithStageID(r.logger, n.stage.ID)
	logger.Debug("stage started", "handler", n.name, "type", n.stage.Label())

	st := state.Snapshot(r.p.graph.ID, n.stage, ex)
	res, err := n.handler(ctx, st)
	if err != nil {
		logger.Error("stage execution fault",
			"interaction_id", st.InteractionID,
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.Result{
			StatusCode: 500,
			Body:       map[string]any{"message": err.Error()},
			Failure:    domain.FailureFault,
		}
	}

	span.SetAttributes(attribute.Int("stage.status_code", res.StatusCode))
	logger.Debug("stage finished", "status_code", res.StatusCode, "status", st.Status)
	r.last = res
	next := ex.Next(res)

	if res.Failed() {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.StatusCode))

		if n.onError != nil && res.Failure.Recoverable() && !r.executed[n.onError.stage.ID] {
			logger.Debug("stage failed, following error edge",
				"status_code", res.StatusCode,
				"error_stage", n.onError.stage.ID,
			)
			return r.visit(ctx, n.onError, next)
		}
		return res
	}

	return r.walk(ctx, n.next, next)
}

// Describe возвращает скомпилированный порядок обхода в виде дерева.
//
//	orders (POST /orders)
//	  fetchOrders [API]
//	    [statusCode == 200] shapeOrders [TRANSFORM]
//	    ! fallback [API]
//	    -> fetchOrders (visited)
func (p *Pipeline) Describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s", p.graph.ID)
	if p.graph.Path != "" {
		fmt.Fprintf(&b, " (POST %s)", p.graph.Path)
	}
	b.WriteString("\n")

	printed := make(map[*node]bool, len(p.nodes))

	var describe func(prefix string, n *node, depth int)
	describe = func(prefix string, n *node, depth int) {
		indent := strings.Repeat("  ", depth)
		if printed[n] {
			fmt.Fprintf(&b, "%s%s-> %s (visited)\n", indent, prefix, n.name)
			return
		}
		printed[n] = true

		fmt.Fprintf(&b, "%s%s%s [%s]\n", indent, prefix, n.name, n.stage.Label())
		for _, br := range n.next {
			describe(guardPrefix(br.guard), br.target, depth+1)
		}
		if n.onError != nil {
			describe("! ", n.onError, depth+1)
		}
	}

	for _, br := range p.entry {
		describe(guardPrefix(br.guard), br.target, 1)
	}

	return b.String()
}

func guardPrefix(g *expr.Guard) string {
	if g == nil {
		return ""
	}
	return "[" + g.String() + "] "
}
