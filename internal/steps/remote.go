package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Conduit/internal/catalog"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/transport"
)

// remoteCall — стратегия REMOTE_CALL.
//
// API вызывает статический адрес; DATASERVICE и FAAS разрешают адрес
// через каталог в момент вызова. Сбой транспорта или каталога даёт
// ERROR/500 и считается ошибкой внешнего сервиса.
func (d *Dispatcher) remoteCall(spec *domain.RemoteCall) (Handler, error) {
	switch spec.Target {
	case domain.TargetAPI:
		if spec.URL == "" {
			return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
		}
	case domain.TargetDataService, domain.TargetFaaS:
		if spec.DescriptorID == "" {
			return nil, fmt.Errorf("%w: descriptor id is required", ErrInvalidConfig)
		}
		if d.catalog == nil {
			return nil, fmt.Errorf("%w: no catalog for %s", ErrInvalidConfig, spec.Target)
		}
	default:
		return nil, fmt.Errorf("%w: unknown remote target %q", ErrInvalidConfig, spec.Target)
	}
	if d.client == nil {
		return nil, fmt.Errorf("%w: no transport client", ErrInvalidConfig)
	}

	return func(ctx context.Context, st *domain.ExecutionState) (*domain.Result, error) {
		opts, err := d.callOptions(ctx, spec, st)
		if err != nil {
			return fail(st, 500, errorBody(err), nil, domain.FailureUpstream), nil
		}
		st.URL = opts.URL
		st.Method = opts.Method

		resp, err := d.client.Do(ctx, opts)
		if err != nil {
			d.logger.Warn("remote call failed",
				"flow_id", st.FlowID,
				"stage_id", st.StageID,
				"url", opts.URL,
				"error", err,
			)
			return fail(st, 500, errorBody(err), nil, domain.FailureUpstream), nil
		}

		if resp.StatusCode == 200 {
			return succeed(st, resp.Body, resp.Headers), nil
		}
		return fail(st, resp.StatusCode, resp.Body, resp.Headers, domain.FailureUpstream), nil
	}, nil
}

// callOptions строит параметры вызова для snapshot st.
func (d *Dispatcher) callOptions(ctx context.Context, spec *domain.RemoteCall, st *domain.ExecutionState) (transport.Options, error) {
	opts := transport.Options{
		Method: spec.Method,
		Body:   st.Body,
	}

	switch spec.Target {
	case domain.TargetAPI:
		opts.URL = spec.URL
		opts.Headers = mergeHeaders(st.Headers, spec.Headers)

	default:
		var (
			desc catalog.Descriptor
			err  error
		)
		if spec.Target == domain.TargetFaaS {
			desc, err = d.catalog.FaaS(ctx, spec.DescriptorID)
		} else {
			desc, err = d.catalog.DataService(ctx, spec.DescriptorID)
		}
		if err != nil {
			return opts, err
		}
		opts.URL = desc.Path()
		opts.Headers = mergeHeaders(st.Headers, nil)
		if opts.Method == "" {
			opts.Method = desc.Method
		}
	}

	if opts.Method == "" {
		opts.Method = "POST"
	}
	opts.Method = strings.ToUpper(opts.Method)

	return opts, nil
}

// mergeHeaders объединяет заголовки запроса с заголовками стадии.
// При совпадении ключа побеждает стадия. Ключи приводятся к нижнему регистру.
func mergeHeaders(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[strings.ToLower(k)] = v
	}
	for k, v := range override {
		out[strings.ToLower(k)] = v
	}
	return out
}
