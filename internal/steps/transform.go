package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/expr"
)

// transform — стратегия TRANSFORM.
//
// Формулы компилируются один раз при построении обработчика.
// Тело-массив преобразуется поэлементно в массив той же длины;
// любое другое тело — один раз.
func (d *Dispatcher) transform(spec *domain.Transform) (Handler, error) {
	formulas := make([]*expr.Formula, 0, len(spec.Mappings))
	for _, m := range spec.Mappings {
		if m.Target == "" {
			return nil, fmt.Errorf("%w: mapping target is required", ErrInvalidConfig)
		}
		f, err := expr.CompileMapping(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		formulas = append(formulas, f)
	}

	return func(_ context.Context, st *domain.ExecutionState) (*domain.Result, error) {
		out, err := applyFormulas(formulas, st.Body)
		if err != nil {
			d.logger.Warn("transform failed",
				"flow_id", st.FlowID,
				"stage_id", st.StageID,
				"error", err,
			)
			return fail(st, 500, errorBody(err), nil, domain.FailureTransform), nil
		}
		return succeed(st, out, nil), nil
	}, nil
}

// applyFormulas применяет формулы к телу body.
func applyFormulas(formulas []*expr.Formula, body any) (any, error) {
	items, ok := body.([]any)
	if !ok {
		return applyOne(formulas, body)
	}

	out := make([]any, len(items))
	for i, item := range items {
		obj, err := applyOne(formulas, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = obj
	}
	return out, nil
}

// applyOne строит один объект результата из элемента item.
func applyOne(formulas []*expr.Formula, item any) (map[string]any, error) {
	obj := make(map[string]any, len(formulas))
	for _, f := range formulas {
		v, err := f.Apply(item)
		if err != nil {
			return nil, err
		}
		obj = domain.SetPath(obj, f.Target, v)
	}
	return obj, nil
}
