package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conduit/internal/domain"
)

// subflow — стратегия SUBFLOW.
func (d *Dispatcher) subflow(spec *domain.Subflow) (Handler, error) {
	if len(spec.Flows) == 0 {
		return nil, fmt.Errorf("%w: subflow has no flows", ErrInvalidConfig)
	}

	switch spec.Mode {
	case domain.SubflowParallel:
		return func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error) {
			res, err := d.runParallel(ctx, spec.Flows, st.Input())
			if err != nil {
				return nil, err
			}
			return propagate(st, res), nil
		}, nil

	case domain.SubflowSequential:
		return func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error) {
			res, err := d.runSequential(ctx, spec.Flows, st.Input())
			if err != nil {
				return nil, err
			}
			return propagate(st, res), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown subflow mode %q", ErrInvalidConfig, spec.Mode)
	}
}

// runParallel выполняет flows конкурентно, каждый со своей копией входа.
//
// Результат виден только после завершения всех веток. Тела собираются
// в порядке объявления, заголовки объединяются (побеждает более поздняя
// ветка). Неуспех любой ветки — неуспех всей стадии; возвращается первая
// неуспешная ветка в порядке объявления.
func (d *Dispatcher) runParallel(ctx context.Context, flows []string, in *domain.Exchange) (*domain.Result, error) {
	runner, err := d.flowRunner()
	if err != nil {
		return nil, err
	}

	results := make([]*domain.Result, len(flows))

	var g errgroup.Group
	for i, id := range flows {
		branch := in.Clone()
		g.Go(func() error {
			res, err := runner.RunFlow(ctx, id, branch)
			if err != nil {
				return fmt.Errorf("flow %s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bodies := make([]any, len(results))
	headers := make(map[string]string)
	for i, res := range results {
		if !res.OK() {
			return res, nil
		}
		bodies[i] = res.Body
		for k, v := range res.Headers {
			headers[k] = v
		}
	}

	return &domain.Result{StatusCode: 200, Body: bodies, Headers: headers}, nil
}

// runSequential передаёт результат каждого flow следующему.
// Первый результат с кодом не 200 возвращается сразу.
func (d *Dispatcher) runSequential(ctx context.Context, flows []string, in *domain.Exchange) (*domain.Result, error) {
	runner, err := d.flowRunner()
	if err != nil {
		return nil, err
	}

	cur := in
	var res *domain.Result
	for _, id := range flows {
		res, err = runner.RunFlow(ctx, id, cur)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", id, err)
		}
		if !res.OK() {
			return res, nil
		}
		cur = cur.Next(res)
	}
	return res, nil
}

func (d *Dispatcher) flowRunner() (FlowRunner, error) {
	if d.runner == nil {
		return nil, fmt.Errorf("%w: no flow runner", ErrExecutionFault)
	}
	return d.runner, nil
}
