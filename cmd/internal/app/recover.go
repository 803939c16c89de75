package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/httpx"
)

// WithRecovery turns a handler panic into the generic internal error
// envelope. When the handler already started its response, the connection
// is left as is and only the log records the failure.
func WithRecovery(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &recoveryWriter{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			log.ErrorContext(r.Context(), "http.panic",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(v),
				"stack", string(debug.Stack()),
			)
			if rw.started {
				return
			}
			httpx.WriteAppError(rw, r, nil, apperr.E("app.recover", apperr.Internal, fmt.Errorf("panic: %v", v)))
		}()

		next.ServeHTTP(rw, r)
	})
}

type recoveryWriter struct {
	http.ResponseWriter
	started bool
}

func (w *recoveryWriter) WriteHeader(code int) {
	w.started = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *recoveryWriter) Write(p []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(p)
}

func (w *recoveryWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.started = true
		f.Flush()
	}
}

func (w *recoveryWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
