package steps

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Conduit/internal/catalog"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/state"
	"github.com/shaiso/Conduit/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecorder запоминает сохранённые snapshot.
type fakeRecorder struct {
	mu     sync.Mutex
	states []*domain.ExecutionState
}

func (r *fakeRecorder) Record(_ context.Context, _ string, st *domain.ExecutionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// doerFunc — transport.Doer из функции.
type doerFunc func(ctx context.Context, opts transport.Options) (*transport.Response, error)

func (f doerFunc) Do(ctx context.Context, opts transport.Options) (*transport.Response, error) {
	return f(ctx, opts)
}

// fakeRunner выполняет flows функциями и считает вызовы.
type fakeRunner struct {
	mu    sync.Mutex
	flows map[string]func(in *domain.Exchange) *domain.Result
	graph func(in *domain.Exchange) *domain.Result
	calls []string
}

func (r *fakeRunner) RunFlow(_ context.Context, id string, in *domain.Exchange) (*domain.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	fn, ok := r.flows[id]
	r.mu.Unlock()

	if !ok {
		return nil, errors.New("unknown flow " + id)
	}
	return fn(in), nil
}

func (r *fakeRunner) RunGraph(_ context.Context, _ *domain.FlowGraph, in *domain.Exchange) (*domain.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "graph")
	r.mu.Unlock()
	return r.graph(in), nil
}

// run строит обработчик стадии и выполняет его над входом in.
func run(t *testing.T, d *Dispatcher, stage *domain.Stage, in *domain.Exchange) (*domain.ExecutionState, *domain.Result, error) {
	t.Helper()

	g := &domain.FlowGraph{ID: "flow1", App: "shop"}
	h, err := d.Handler(g, stage)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	st := state.Snapshot(g.ID, stage, in)
	res, err := h(context.Background(), st)
	return st, res, err
}

func TestRemoteCall_API(t *testing.T) {
	var gotHeaders http.Header
	var gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotMethod = r.Method

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "orders")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	d := NewDispatcher(Config{
		Client:   transport.NewClient(transport.Config{BaseURL: srv.URL}),
		Recorder: rec,
		Logger:   discardLogger(),
	})

	t.Run("success", func(t *testing.T) {
		stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{
			Target:  domain.TargetAPI,
			URL:     "/orders",
			Method:  "put",
			Headers: map[string]string{"X-Stage": "s", "x-override": "stage"},
		}}
		in := &domain.Exchange{
			Headers: map[string]string{"x-override": "request", "x-request": "r"},
			Body:    map[string]any{"q": "a"},
		}

		st, res, err := run(t, d, stage, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if res.StatusCode != 200 || st.Status != domain.StatusSuccess {
			t.Fatalf("expected 200/SUCCESS, got %d/%s", res.StatusCode, st.Status)
		}
		if diff := cmp.Diff(map[string]any{"id": float64(1)}, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
		if res.Headers["x-upstream"] != "orders" {
			t.Errorf("expected upstream header, got %v", res.Headers)
		}
		if gotMethod != http.MethodPut {
			t.Errorf("expected PUT, got %s", gotMethod)
		}
		// Заголовок стадии побеждает заголовок запроса.
		if gotHeaders.Get("X-Override") != "stage" || gotHeaders.Get("X-Request") != "r" {
			t.Errorf("headers not merged: %v", gotHeaders)
		}
		if st.URL != "/orders" || st.Method != "PUT" {
			t.Errorf("expected url and method on state, got %s %s", st.Method, st.URL)
		}
	})

	t.Run("upstream error propagated", func(t *testing.T) {
		stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "/missing"}}

		st, res, err := run(t, d, stage, &domain.Exchange{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if res.StatusCode != 404 || st.Status != domain.StatusError {
			t.Fatalf("expected 404/ERROR, got %d/%s", res.StatusCode, st.Status)
		}
		if res.Failure != domain.FailureUpstream {
			t.Errorf("expected upstream failure, got %v", res.Failure)
		}
		if diff := cmp.Diff(map[string]any{"error": "not found"}, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
	})

	if rec.count() != 2 {
		t.Errorf("expected 2 recorded states, got %d", rec.count())
	}
}

func TestRemoteCall_TransportFault(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(Config{
		Client: doerFunc(func(context.Context, transport.Options) (*transport.Response, error) {
			return nil, errors.New("connection refused")
		}),
		Recorder: rec,
		Logger:   discardLogger(),
	})

	stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "http://down"}}
	st, res, err := run(t, d, stage, &domain.Exchange{})
	if err != nil {
		t.Fatalf("transport fault must not be returned as error: %v", err)
	}

	if res.StatusCode != 500 || st.Status != domain.StatusError {
		t.Errorf("expected 500/ERROR, got %d/%s", res.StatusCode, st.Status)
	}
	if diff := cmp.Diff(map[string]any{"message": "connection refused"}, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if !res.Failure.Recoverable() {
		t.Error("transport fault should be recoverable")
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 recorded state, got %d", rec.count())
	}
}

func TestRemoteCall_CompressedUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			w.Header().Set("Content-Encoding", "gzip")
			zw := gzip.NewWriter(w)
			defer zw.Close()
			io.WriteString(zw, `{"id":1}`)
			return
		}
		io.WriteString(w, `{"id":1}`)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Client:   transport.NewClient(transport.Config{BaseURL: srv.URL}),
		Recorder: &fakeRecorder{},
		Logger:   discardLogger(),
	})

	stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "/orders"}}
	in := &domain.Exchange{Headers: map[string]string{
		"accept-encoding": "gzip, deflate, br",
		"connection":      "keep-alive",
	}}

	st, res, err := run(t, d, stage, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 || st.Status != domain.StatusSuccess {
		t.Fatalf("expected 200/SUCCESS, got %d/%s", res.StatusCode, st.Status)
	}
	if diff := cmp.Diff(map[string]any{"id": float64(1)}, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteCall_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":"`+strings.Repeat("x", 256)+`"}`)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Client:   transport.NewClient(transport.Config{BaseURL: srv.URL, MaxResponseBody: 128}),
		Recorder: &fakeRecorder{},
		Logger:   discardLogger(),
	})

	stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "/orders"}}
	st, res, err := run(t, d, stage, &domain.Exchange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 500 || st.Status != domain.StatusError {
		t.Fatalf("expected 500/ERROR, got %d/%s", res.StatusCode, st.Status)
	}
	body, _ := res.Body.(map[string]any)
	if msg, _ := body["message"].(string); !strings.Contains(msg, "too large") {
		t.Errorf("expected size error in body, got %v", res.Body)
	}
}

func TestRemoteCall_Descriptor(t *testing.T) {
	cat := catalog.NewStatic()
	cat.RegisterDataService("ds1", catalog.Descriptor{App: "shop", API: "/customers"})
	cat.RegisterFaaS("fn1", catalog.Descriptor{App: "shop", API: "/score", Method: "PUT"})

	var got transport.Options
	d := NewDispatcher(Config{
		Client: doerFunc(func(_ context.Context, opts transport.Options) (*transport.Response, error) {
			got = opts
			return &transport.Response{StatusCode: 200, Body: "ok"}, nil
		}),
		Catalog:  cat,
		Recorder: &fakeRecorder{},
		Logger:   discardLogger(),
	})

	tests := []struct {
		name       string
		spec       *domain.RemoteCall
		wantURL    string
		wantMethod string
		wantCode   int
	}{
		{
			name:       "data service",
			spec:       &domain.RemoteCall{Target: domain.TargetDataService, DescriptorID: "ds1"},
			wantURL:    "/shop/customers",
			wantMethod: "POST",
			wantCode:   200,
		},
		{
			name:       "faas method from descriptor",
			spec:       &domain.RemoteCall{Target: domain.TargetFaaS, DescriptorID: "fn1"},
			wantURL:    "/shop/score",
			wantMethod: "PUT",
			wantCode:   200,
		},
		{
			name:     "unknown descriptor",
			spec:     &domain.RemoteCall{Target: domain.TargetFaaS, DescriptorID: "nope"},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = transport.Options{}

			_, res, err := run(t, d, &domain.Stage{ID: "call", Spec: tt.spec}, &domain.Exchange{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.StatusCode != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, res.StatusCode)
			}
			if got.URL != tt.wantURL || got.Method != tt.wantMethod {
				t.Errorf("expected %s %s, got %s %s", tt.wantMethod, tt.wantURL, got.Method, got.URL)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})

	stage := &domain.Stage{ID: "shape", Spec: &domain.Transform{Mappings: []domain.Mapping{
		{Target: "customer.name", Sources: []string{"name"}, Formula: "upper(input1)"},
		{Target: "total", Sources: []string{"price", "qty"}, Formula: "input1 * input2"},
		{Target: "ref", Sources: []string{"id"}},
	}}}

	t.Run("array body", func(t *testing.T) {
		in := &domain.Exchange{Body: []any{
			map[string]any{"name": "ann", "price": float64(2), "qty": float64(3), "id": "a1", "extra": true},
			map[string]any{"name": "bob", "price": float64(5), "qty": float64(1), "id": "b2"},
		}}

		st, res, err := run(t, d, stage, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []any{
			map[string]any{"customer": map[string]any{"name": "ANN"}, "total": int64(6), "ref": "a1"},
			map[string]any{"customer": map[string]any{"name": "BOB"}, "total": int64(5), "ref": "b2"},
		}
		if diff := cmp.Diff(want, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
		if st.Status != domain.StatusSuccess || res.StatusCode != 200 {
			t.Errorf("expected SUCCESS/200, got %s/%d", st.Status, res.StatusCode)
		}
	})

	t.Run("object body", func(t *testing.T) {
		in := &domain.Exchange{Body: map[string]any{"name": "cy", "price": float64(1.5), "qty": float64(2), "id": "c3"}}

		_, res, err := run(t, d, stage, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := map[string]any{"customer": map[string]any{"name": "CY"}, "total": int64(3), "ref": "c3"}
		if diff := cmp.Diff(want, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("formula error", func(t *testing.T) {
		in := &domain.Exchange{Body: map[string]any{"name": "x", "price": "not a number", "qty": float64(1)}}

		st, res, err := run(t, d, stage, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.StatusCode != 500 || st.Status != domain.StatusError {
			t.Errorf("expected 500/ERROR, got %d/%s", res.StatusCode, st.Status)
		}
		if res.Failure != domain.FailureTransform || res.Failure.Recoverable() {
			t.Errorf("expected non-recoverable transform failure, got %v", res.Failure)
		}
	})
}

func TestSubflow_Parallel(t *testing.T) {
	runner := &fakeRunner{flows: map[string]func(*domain.Exchange) *domain.Result{
		"a": func(in *domain.Exchange) *domain.Result {
			// Ветка меняет свою копию входа.
			in.Body.(map[string]any)["touched"] = "a"
			return &domain.Result{StatusCode: 200, Body: "a", Headers: map[string]string{"x-shared": "a", "x-a": "1"}}
		},
		"b": func(*domain.Exchange) *domain.Result {
			return &domain.Result{StatusCode: 200, Body: "b", Headers: map[string]string{"x-shared": "b"}}
		},
		"bad": func(*domain.Exchange) *domain.Result {
			return &domain.Result{StatusCode: 502, Body: "bad gateway", Failure: domain.FailureUpstream}
		},
		"worse": func(*domain.Exchange) *domain.Result {
			return &domain.Result{StatusCode: 503, Body: "unavailable", Failure: domain.FailureUpstream}
		},
	}}

	d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
	d.SetRunner(runner)

	t.Run("aggregates in declaration order", func(t *testing.T) {
		body := map[string]any{"k": "v"}
		stage := &domain.Stage{ID: "fan", Spec: &domain.Subflow{Mode: domain.SubflowParallel, Flows: []string{"a", "b"}}}

		st, res, err := run(t, d, stage, &domain.Exchange{Body: body})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]any{"a", "b"}, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]string{"x-shared": "b", "x-a": "1"}, res.Headers); diff != "" {
			t.Errorf("headers mismatch (-want +got):\n%s", diff)
		}
		if _, touched := body["touched"]; touched {
			t.Error("branch mutated the shared input")
		}
		if _, touched := st.Body.(map[string]any)["touched"]; touched {
			t.Error("branch mutated the stage state")
		}
	})

	t.Run("any failure fails the stage", func(t *testing.T) {
		stage := &domain.Stage{ID: "fan", Spec: &domain.Subflow{Mode: domain.SubflowParallel, Flows: []string{"a", "bad", "worse"}}}

		st, res, err := run(t, d, stage, &domain.Exchange{Body: map[string]any{}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if res.StatusCode != 502 || st.Status != domain.StatusError {
			t.Errorf("expected first failing branch 502/ERROR, got %d/%s", res.StatusCode, st.Status)
		}
		if res.Body != "bad gateway" {
			t.Errorf("expected failing branch body, got %v", res.Body)
		}
	})

	t.Run("runner fault", func(t *testing.T) {
		stage := &domain.Stage{ID: "fan", Spec: &domain.Subflow{Mode: domain.SubflowParallel, Flows: []string{"a", "ghost"}}}

		st, _, err := run(t, d, stage, &domain.Exchange{Body: map[string]any{}})
		if err == nil {
			t.Fatal("expected error for unknown flow")
		}
		if st.Status != domain.StatusError || st.StatusCode != 500 {
			t.Errorf("expected ERROR/500, got %s/%d", st.Status, st.StatusCode)
		}
	})
}

func TestSubflow_Sequential(t *testing.T) {
	t.Run("threads results", func(t *testing.T) {
		runner := &fakeRunner{flows: map[string]func(*domain.Exchange) *domain.Result{
			"first": func(in *domain.Exchange) *domain.Result {
				return &domain.Result{StatusCode: 200, Body: in.EffectiveBody().(string) + "+1"}
			},
			"second": func(in *domain.Exchange) *domain.Result {
				return &domain.Result{StatusCode: 200, Body: in.EffectiveBody().(string) + "+2"}
			},
		}}
		d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
		d.SetRunner(runner)

		stage := &domain.Stage{ID: "chain", Spec: &domain.Subflow{Mode: domain.SubflowSequential, Flows: []string{"first", "second"}}}
		_, res, err := run(t, d, stage, &domain.Exchange{Body: "0"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Body != "0+1+2" {
			t.Errorf("expected 0+1+2, got %v", res.Body)
		}
	})

	t.Run("stops at first failure", func(t *testing.T) {
		failing := &domain.Result{StatusCode: 500, Body: map[string]any{"message": "boom"}, Failure: domain.FailureUpstream}
		runner := &fakeRunner{flows: map[string]func(*domain.Exchange) *domain.Result{
			"first":  func(*domain.Exchange) *domain.Result { return failing },
			"second": func(*domain.Exchange) *domain.Result { return &domain.Result{StatusCode: 200} },
		}}
		d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
		d.SetRunner(runner)

		stage := &domain.Stage{ID: "chain", Spec: &domain.Subflow{Mode: domain.SubflowSequential, Flows: []string{"first", "second"}}}
		_, res, err := run(t, d, stage, &domain.Exchange{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]string{"first"}, runner.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
		if res.StatusCode != failing.StatusCode {
			t.Errorf("expected %d, got %d", failing.StatusCode, res.StatusCode)
		}
		if diff := cmp.Diff(failing.Body, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestIteration(t *testing.T) {
	nested := &domain.FlowGraph{ID: "nested", Entry: []domain.Edge{{Target: "step"}}}

	t.Run("foreach", func(t *testing.T) {
		runner := &fakeRunner{graph: func(in *domain.Exchange) *domain.Result {
			return &domain.Result{StatusCode: 200, Body: in.Body.(float64) * 10}
		}}
		d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
		d.SetRunner(runner)

		stage := &domain.Stage{ID: "each", Spec: &domain.Iteration{Mode: domain.IterationForEach, Graph: nested}}
		_, res, err := run(t, d, stage, &domain.Exchange{Body: []any{float64(1), float64(2), float64(3)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]any{float64(10), float64(20), float64(30)}, res.Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
		if len(runner.calls) != 3 {
			t.Errorf("expected 3 nested runs, got %d", len(runner.calls))
		}
	})

	t.Run("foreach stops at failure", func(t *testing.T) {
		runner := &fakeRunner{graph: func(in *domain.Exchange) *domain.Result {
			if in.Body.(float64) == 2 {
				return &domain.Result{StatusCode: 422, Body: "rejected", Failure: domain.FailureUpstream}
			}
			return &domain.Result{StatusCode: 200, Body: in.Body}
		}}
		d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
		d.SetRunner(runner)

		stage := &domain.Stage{ID: "each", Spec: &domain.Iteration{Mode: domain.IterationForEach, Graph: nested}}
		st, res, err := run(t, d, stage, &domain.Exchange{Body: []any{float64(1), float64(2), float64(3)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if res.StatusCode != 422 || st.Status != domain.StatusError {
			t.Errorf("expected 422/ERROR, got %d/%s", res.StatusCode, st.Status)
		}
		if len(runner.calls) != 2 {
			t.Errorf("expected 2 nested runs, got %d", len(runner.calls))
		}
	})

	t.Run("reduce", func(t *testing.T) {
		runner := &fakeRunner{graph: func(in *domain.Exchange) *domain.Result {
			body := in.Body.(map[string]any)
			return &domain.Result{StatusCode: 200, Body: body["accumulator"].(float64) + body["item"].(float64)}
		}}
		d := NewDispatcher(Config{Recorder: &fakeRecorder{}, Logger: discardLogger()})
		d.SetRunner(runner)

		stage := &domain.Stage{ID: "sum", Spec: &domain.Iteration{Mode: domain.IterationReduce, Graph: nested, Initial: float64(100)}}
		_, res, err := run(t, d, stage, &domain.Exchange{Body: []any{float64(1), float64(2), float64(3)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Body != float64(106) {
			t.Errorf("expected 106, got %v", res.Body)
		}
	})
}

func TestHandler_PanicRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(Config{
		Client: doerFunc(func(context.Context, transport.Options) (*transport.Response, error) {
			panic("nil map")
		}),
		Recorder: rec,
		Logger:   discardLogger(),
	})

	stage := &domain.Stage{ID: "fetch", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "http://x"}}
	st, res, err := run(t, d, stage, &domain.Exchange{})

	if !errors.Is(err, ErrExecutionFault) {
		t.Fatalf("expected ErrExecutionFault, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
	if st.Status != domain.StatusError || st.StatusCode != 500 {
		t.Errorf("expected ERROR/500, got %s/%d", st.Status, st.StatusCode)
	}
	if rec.count() != 1 {
		t.Errorf("expected state recorded once, got %d", rec.count())
	}
}

func TestBuild(t *testing.T) {
	d := NewDispatcher(Config{
		Client:   doerFunc(nil),
		Catalog:  catalog.NewStatic(),
		Recorder: &fakeRecorder{},
		Logger:   discardLogger(),
	})

	graph := func(stages ...*domain.Stage) *domain.FlowGraph {
		g := &domain.FlowGraph{ID: "f", Stages: make(map[string]*domain.Stage)}
		for _, s := range stages {
			g.Stages[s.ID] = s
			g.Order = append(g.Order, s.ID)
		}
		return g
	}

	t.Run("registers camelCase names", func(t *testing.T) {
		reg, err := d.Build(graph(
			&domain.Stage{ID: "fetch-orders", Spec: &domain.RemoteCall{Target: domain.TargetAPI, URL: "/o"}},
			&domain.Stage{ID: "shape_result", Spec: &domain.Transform{}},
		))
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if diff := cmp.Diff([]string{"fetchOrders", "shapeResult"}, reg.Names()); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
	})

	tests := []struct {
		name    string
		stages  []*domain.Stage
		wantErr error
	}{
		{
			name: "name collision",
			stages: []*domain.Stage{
				{ID: "fetch-orders", Spec: &domain.Transform{}},
				{ID: "fetchOrders", Spec: &domain.Transform{}},
			},
			wantErr: ErrDuplicateHandler,
		},
		{
			name:    "api without url",
			stages:  []*domain.Stage{{ID: "a", Spec: &domain.RemoteCall{Target: domain.TargetAPI}}},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "bad formula",
			stages: []*domain.Stage{{ID: "t", Spec: &domain.Transform{Mappings: []domain.Mapping{
				{Target: "x", Sources: []string{"a"}, Formula: "input1 +"},
			}}}},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "empty subflow",
			stages:  []*domain.Stage{{ID: "s", Spec: &domain.Subflow{Mode: domain.SubflowParallel}}},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "iteration without graph",
			stages:  []*domain.Stage{{ID: "i", Spec: &domain.Iteration{Mode: domain.IterationForEach}}},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Build(graph(tt.stages...))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
