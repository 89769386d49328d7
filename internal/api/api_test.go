package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
	"github.com/shaiso/Conduit/internal/steps"
	"github.com/shaiso/Conduit/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, *domain.ExecutionState) {}

// echoUpstream отвечает телом и заголовками запроса; "/missing" — 404.
type echoUpstream struct {
	mu   sync.Mutex
	last transport.Options
}

func (u *echoUpstream) Do(_ context.Context, opts transport.Options) (*transport.Response, error) {
	u.mu.Lock()
	u.last = opts
	u.mu.Unlock()

	if opts.URL == "/missing" {
		return &transport.Response{StatusCode: 404, Body: map[string]any{"error": "no such order"}}, nil
	}
	return &transport.Response{
		StatusCode: 200,
		Body:       map[string]any{"echo": opts.Body},
		Headers:    map[string]string{"x-upstream": "1", "content-length": "99"},
	}, nil
}

func newServer(t *testing.T, up transport.Doer) *httptest.Server {
	t.Helper()
	return newServerWithLimit(t, up, 0)
}

func newServerWithLimit(t *testing.T, up transport.Doer, maxBody int64) *httptest.Server {
	t.Helper()

	def := &domain.Definition{Flows: []domain.FlowDef{
		{
			ID:   "orders",
			Name: "Orders",
			InputStage: domain.InputStageDef{
				Incoming:  domain.IncomingDef{Path: "/orders/{region}"},
				OnSuccess: []domain.EdgeDef{{ID: "fetch"}},
			},
			Stages: []domain.StageDef{
				{ID: "fetch", Type: domain.StageTypeAPI, Outgoing: &domain.OutgoingDef{URL: "/api/orders"}},
			},
		},
		{
			ID: "broken",
			InputStage: domain.InputStageDef{
				Incoming:  domain.IncomingDef{Path: "/broken"},
				OnSuccess: []domain.EdgeDef{{ID: "fetch"}},
			},
			Stages: []domain.StageDef{
				{ID: "fetch", Type: domain.StageTypeAPI, Outgoing: &domain.OutgoingDef{URL: "/missing"}},
			},
		},
		{
			ID:         "internal",
			InputStage: domain.InputStageDef{OnSuccess: []domain.EdgeDef{{ID: "fetch"}}},
			Stages: []domain.StageDef{
				{ID: "fetch", Type: domain.StageTypeAPI, Outgoing: &domain.OutgoingDef{URL: "/x"}},
			},
		},
	}}

	graphs, err := engine.Parse(def)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	d := steps.NewDispatcher(steps.Config{Client: up, Recorder: nopRecorder{}, Logger: discardLogger()})
	e, err := engine.New(engine.Config{Graphs: graphs, Dispatcher: d, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(Config{Engine: e, MaxRequestBody: maxBody, Logger: discardLogger()}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) any {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var v any
	if err := sonic.Unmarshal(data, &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", data, err)
	}
	return v
}

func TestServeFlow(t *testing.T) {
	up := &echoUpstream{}
	srv := newServer(t, up)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders/eu?interactionId=i-1", strings.NewReader(`{"item":"book"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client", "test")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Upstream") != "1" {
		t.Error("expected upstream header in response")
	}

	want := map[string]any{"echo": map[string]any{"item": "book"}}
	if diff := cmp.Diff(want, decode(t, resp)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	up.mu.Lock()
	headers := up.last.Headers
	up.mu.Unlock()

	if headers["x-client"] != "test" {
		t.Errorf("expected client header forwarded, got %v", headers)
	}
	if len(headers[domain.HeaderTxnID]) != 8 {
		t.Errorf("expected generated txn id, got %q", headers[domain.HeaderTxnID])
	}
	if len(headers[domain.HeaderRemoteTxnID]) != 36 {
		t.Errorf("expected generated remote txn id, got %q", headers[domain.HeaderRemoteTxnID])
	}
}

func TestServeFlow_KeepsTxnIDs(t *testing.T) {
	up := &echoUpstream{}
	srv := newServer(t, up)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders/eu", nil)
	req.Header.Set(domain.HeaderTxnID, "txn-1")
	req.Header.Set(domain.HeaderRemoteTxnID, "remote-1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	up.mu.Lock()
	defer up.mu.Unlock()
	if up.last.Headers[domain.HeaderTxnID] != "txn-1" || up.last.Headers[domain.HeaderRemoteTxnID] != "remote-1" {
		t.Errorf("txn ids must be kept, got %v", up.last.Headers)
	}
}

func TestServeFlow_UpstreamFailure(t *testing.T) {
	srv := newServer(t, &echoUpstream{})

	resp, err := http.Post(srv.URL+"/broken", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if diff := cmp.Diff(map[string]any{"error": "no such order"}, decode(t, resp)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestServeFlow_InvalidJSON(t *testing.T) {
	srv := newServer(t, &echoUpstream{})

	resp, err := http.Post(srv.URL+"/orders/eu", "application/json", strings.NewReader(`{"broken`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServeFlow_BodyTooLarge(t *testing.T) {
	up := &echoUpstream{}
	srv := newServerWithLimit(t, up, 32)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{name: "json within limit", contentType: "application/json", body: `{"id":1}`, want: http.StatusOK},
		{name: "json over limit", contentType: "application/json", body: `{"id":"` + strings.Repeat("x", 64) + `"}`, want: http.StatusRequestEntityTooLarge},
		{name: "file over limit", contentType: "text/csv", body: strings.Repeat("a,b\n", 16), want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/orders/eu", tt.contentType, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want != http.StatusRequestEntityTooLarge {
				return
			}
			body, _ := decode(t, resp).(map[string]any)
			detail, _ := body["error"].(map[string]any)
			if detail["code"] != string(ErrCodeTooLarge) {
				t.Errorf("expected %s, got %v", ErrCodeTooLarge, body)
			}
		})
	}
}

func TestServeFlow_MethodAndRoutes(t *testing.T) {
	srv := newServer(t, &echoUpstream{})

	resp, err := http.Get(srv.URL + "/orders/eu")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", resp.StatusCode)
	}

	// Flow без входящего пути не получает маршрут.
	resp, err = http.Post(srv.URL+"/internal", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unrouted flow, got %d", resp.StatusCode)
	}
}

func TestReadExchange(t *testing.T) {
	mux := http.NewServeMux()

	var got *domain.Exchange
	mux.HandleFunc("POST /files/{kind}/{rest...}", func(w http.ResponseWriter, r *http.Request) {
		ex, err := readExchange(r)
		if err != nil {
			t.Errorf("readExchange failed: %v", err)
		}
		got = ex
	})

	req := httptest.NewRequest(http.MethodPost, "/files/csv/a/b?interactionId=i-7&x=1&x=2", strings.NewReader("a,b\n1,2"))
	req.Header.Set("Content-Type", "text/csv")
	mux.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("handler not called")
	}
	if got.Body != nil || got.FileContent != "a,b\n1,2" {
		t.Errorf("expected file content, got body=%v file=%q", got.Body, got.FileContent)
	}
	if diff := cmp.Diff(map[string]string{"kind": "csv", "rest": "a/b"}, got.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if got.InteractionID() != "i-7" || got.Query["x"] != "1" {
		t.Errorf("unexpected query: %v", got.Query)
	}
	if got.Headers["content-type"] != "text/csv" {
		t.Errorf("expected lower-cased headers, got %v", got.Headers)
	}
}

func TestFlowsEndpoints(t *testing.T) {
	srv := newServer(t, &echoUpstream{})

	resp, err := http.Get(srv.URL + "/api/v1/flows")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	list := decode(t, resp).(map[string]any)
	if list["total"] != float64(3) {
		t.Errorf("expected 3 flows, got %v", list["total"])
	}

	resp2, err := http.Get(srv.URL + "/api/v1/flows/orders")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()

	flow := decode(t, resp2).(map[string]any)["data"].(map[string]any)
	if flow["path"] != "/orders/{region}" || !strings.Contains(flow["plan"].(string), "fetch [API]") {
		t.Errorf("unexpected flow: %v", flow)
	}
	stages := flow["stages"].([]any)
	if stages[0].(map[string]any)["handler"] != "fetch" {
		t.Errorf("unexpected stages: %v", stages)
	}

	resp3, err := http.Get(srv.URL + "/api/v1/flows/ghost")
	if err != nil {
		t.Fatal(err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp3.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &echoUpstream{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWriteResult(t *testing.T) {
	tests := []struct {
		name        string
		res         *domain.Result
		wantCode    int
		wantBody    string
		wantType    string
		wantDropped string
	}{
		{
			name:     "json",
			res:      &domain.Result{StatusCode: 201, Body: map[string]any{"a": 1}},
			wantCode: 201,
			wantBody: `{"a":1}`,
			wantType: "application/json",
		},
		{
			name:     "text",
			res:      &domain.Result{StatusCode: 200, Body: "plain"},
			wantCode: 200,
			wantBody: "plain",
			wantType: "text/plain; charset=utf-8",
		},
		{
			name:        "empty",
			res:         &domain.Result{StatusCode: 204, Headers: map[string]string{"transfer-encoding": "chunked"}},
			wantCode:    204,
			wantDropped: "Transfer-Encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteResult(rec, tt.res)

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
			if rec.Header().Get("Content-Type") != tt.wantType {
				t.Errorf("expected content type %q, got %q", tt.wantType, rec.Header().Get("Content-Type"))
			}
			if tt.wantDropped != "" && rec.Header().Get(tt.wantDropped) != "" {
				t.Errorf("%s must not be forwarded", tt.wantDropped)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	mux := http.NewServeMux()
	chain := Chain(Recovery(logger), TxnIDs(), Logging(logger))
	mux.Handle("POST /boom", chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("stage exploded")
	})))
	mux.Handle("POST /teapot/{id}", chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	})))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boom", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected 500 INTERNAL_ERROR, got %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "stage exploded") {
		t.Error("expected panic to be logged")
	}

	logs.Reset()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/teapot/7", nil))

	for _, want := range []string{"level=WARN", "status=418", "bytes=15", `route="POST /teapot/{id}"`, "txn_id="} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected %s in log record %q", want, logs.String())
		}
	}
}
