package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conduit/internal/domain"
)

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging пишет запись о каждом запросе.
//
// Уровень зависит от кода ответа: 5xx — error, 4xx — warn.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.Status() >= 500:
				level = slog.LevelError
			case rw.Status() >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", r.Pattern,
				"path", r.URL.Path,
				"status", rw.Status(),
				"bytes", rw.written,
				"duration", time.Since(start),
				"txn_id", r.Header.Get(domain.HeaderTxnID),
				"remote_txn_id", r.Header.Get(domain.HeaderRemoteTxnID),
			)
		})
	}
}

// Recovery отвечает 500 на панику обработчика.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"txn_id", r.Header.Get(domain.HeaderTxnID),
					"stack", string(debug.Stack()),
				)
				Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// TxnIDs проставляет идентификаторы транзакции, если клиент их не передал.
//
// data-stack-txn-id — вторая и третья группы нового UUID ("1b9d4bad"),
// data-stack-remote-txn-id — полный UUID.
func TxnIDs() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(domain.HeaderTxnID) == "" {
				parts := strings.Split(uuid.NewString(), "-")
				r.Header.Set(domain.HeaderTxnID, parts[1]+parts[2])
			}
			if r.Header.Get(domain.HeaderRemoteTxnID) == "" {
				r.Header.Set(domain.HeaderRemoteTxnID, uuid.NewString())
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter запоминает код и размер ответа.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.status == 0 {
		rw.status = status
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Status возвращает код ответа; 200, если обработчик ничего не записал.
func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
