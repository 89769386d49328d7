package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// RegisterRoutes регистрирует маршруты flows и служебные endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		TxnIDs(),
		Logging(h.logger),
	)

	// Flows
	for _, p := range h.engine.Pipelines() {
		g := p.Graph()
		if g.Path == "" {
			continue
		}
		mux.Handle("POST "+g.Path, chain(h.ServeFlow(g.ID)))
		h.logger.Info("flow route registered", "flow_id", g.ID, "path", g.Path)
	}

	// Описание flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))

	// Health и metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}
