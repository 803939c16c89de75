package httpx

import (
	"log/slog"
	"net/http"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
)

// WriteAppError maps err to its kind's status and stable code. Unclassified
// errors become Internal. Internal and remote failures are logged in full
// and answered with the generic message only.
func WriteAppError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)

	switch kind {
	case apperr.Internal, apperr.RemoteExchangeFailed:
		if log != nil {
			log.ErrorContext(r.Context(), "http.request.fail",
				"method", r.Method,
				"path", r.URL.Path,
				"kind", kind.Name,
				"err", err,
			)
		}
		WriteError(w, kind.Status, kind.Code, kind.Message)
		return
	}

	msg := kind.Message
	if d := apperr.DetailOf(err); d != "" && kind == apperr.InvalidInput {
		msg = kind.Message + ": " + d
	}
	WriteError(w, kind.Status, kind.Code, msg)
}

// WriteInvalidBody answers an undecodable request body.
func WriteInvalidBody(w http.ResponseWriter) {
	WriteError(w, apperr.InvalidInput.Status, apperr.InvalidInput.Code, "invalid request body")
}

// WriteUnauthorized answers a request without a usable bearer token.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="onecar"`)
	WriteError(w, apperr.InvalidToken.Status, apperr.InvalidToken.Code, apperr.InvalidToken.Message)
}
