package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Conduit/internal/domain"
)

// iteration — стратегия ITERATION.
//
// Вложенный граф выполняется отдельным обходом для каждого элемента
// тела, последовательно. Скаляр считается массивом из одного элемента.
func (d *Dispatcher) iteration(spec *domain.Iteration) (Handler, error) {
	if spec.Graph == nil || len(spec.Graph.Entry) == 0 {
		return nil, fmt.Errorf("%w: iteration has no nested stages", ErrInvalidConfig)
	}

	switch spec.Mode {
	case domain.IterationForEach:
		return func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error) {
			runner, err := d.flowRunner()
			if err != nil {
				return nil, err
			}

			items := elements(st.Body)
			outputs := make([]any, 0, len(items))
			for i, item := range items {
				in := st.Input()
				in.Body = item

				res, err := runner.RunGraph(ctx, spec.Graph, in)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				if !res.OK() {
					return propagate(st, res), nil
				}
				outputs = append(outputs, res.Body)
			}
			return succeed(st, outputs, nil), nil
		}, nil

	case domain.IterationReduce:
		return func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error) {
			runner, err := d.flowRunner()
			if err != nil {
				return nil, err
			}

			acc := domain.CloneValue(spec.Initial)
			for i, item := range elements(st.Body) {
				in := st.Input()
				in.Body = map[string]any{"accumulator": acc, "item": item}

				res, err := runner.RunGraph(ctx, spec.Graph, in)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				if !res.OK() {
					return propagate(st, res), nil
				}
				acc = res.Body
			}
			return succeed(st, acc, nil), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown iteration mode %q", ErrInvalidConfig, spec.Mode)
	}
}

// elements возвращает элементы тела для итерации. nil — пустой набор.
func elements(body any) []any {
	switch v := body.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}
