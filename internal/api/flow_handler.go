package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// ServeFlow возвращает обработчик вызова flow.
// POST <path>
//
// Тело JSON разбирается в body; тело другого типа передаётся стадиям
// как fileContent. Результат последней стадии отправляется клиенту как есть.
func (h *Handler) ServeFlow(flowID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

		ex, err := readExchange(r)
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				telemetry.RequestsTotal.WithLabelValues(flowID, "413").Inc()
				Error(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
				return
			}
			telemetry.RequestsTotal.WithLabelValues(flowID, "400").Inc()
			BadRequest(w, err.Error())
			return
		}

		txnLogger := telemetry.WithTxn(h.logger, ex.Headers[domain.HeaderTxnID], ex.Headers[domain.HeaderRemoteTxnID])
		logger := telemetry.WithFlowID(txnLogger, flowID)

		ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
		defer cancel()
		ctx = telemetry.WithLogger(ctx, txnLogger)

		res, err := h.engine.RunFlow(ctx, flowID, ex)
		if err != nil {
			telemetry.RequestsTotal.WithLabelValues(flowID, "500").Inc()
			InternalError(w, logger, err)
			return
		}

		logger.Debug("flow finished", "status_code", res.StatusCode)
		telemetry.RequestsTotal.WithLabelValues(flowID, strconv.Itoa(res.StatusCode)).Inc()

		WriteResult(w, res)
	})
}

// readExchange строит контекст выполнения из HTTP запроса.
// Тело ограничивается вызывающим через http.MaxBytesReader.
func readExchange(r *http.Request) (*domain.Exchange, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return nil, err
	}

	ex := &domain.Exchange{
		Headers: make(map[string]string, len(r.Header)),
		Params:  pathParams(r),
		Query:   make(map[string]string),
	}
	for k := range r.Header {
		ex.Headers[strings.ToLower(k)] = r.Header.Get(k)
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			ex.Query[k] = v[0]
		}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ex, nil
	}

	if isJSON(r.Header.Get("Content-Type")) {
		var body any
		if err := sonic.Unmarshal(raw, &body); err != nil {
			return nil, errInvalidBody
		}
		ex.Body = body
	} else {
		ex.FileContent = string(raw)
	}

	return ex, nil
}

var (
	errInvalidBody  = errors.New("invalid JSON body")
	errBodyTooLarge = errors.New("request body too large")
)

// isJSON возвращает true для JSON и для отсутствующего Content-Type.
func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// pathParams собирает значения wildcard-сегментов маршрута ("/orders/{id}").
func pathParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for _, seg := range strings.Split(r.Pattern, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.Trim(seg, "{}"), "...")
		if name == "$" {
			continue
		}
		if v := r.PathValue(name); v != "" {
			params[name] = v
		}
	}
	return params
}

// ListFlows возвращает список flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, _ *http.Request) {
	pipelines := h.engine.Pipelines()

	result := make([]FlowResponse, len(pipelines))
	for i, p := range pipelines {
		result[i] = FlowFromPipeline(p)
	}

	List(w, result, len(result))
}

// GetFlow возвращает flow по ID вместе со скомпилированным порядком обхода.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	p, ok := h.engine.Pipeline(r.PathValue("id"))
	if !ok {
		NotFound(w, "flow not found")
		return
	}

	resp := FlowFromPipeline(p)
	resp.Plan = p.Describe()
	Success(w, resp)
}
