// Package oauthapi exposes account linking over HTTP.
package oauthapi

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/httpx"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/linking"
)

// Handler wires linking endpoints to linking.Service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *linking.Service
}

func NewHandler(log *slog.Logger, cfg Config, svc *linking.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg, svc: svc}
}

// Register wires linking routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/oauth/link", h.handleStartLink)
	mux.HandleFunc("POST /api/auth/kftc-oauth-callback", h.handlePushCallback)
	mux.HandleFunc("GET /oauth/callback", h.handleRedirectCallback)
	mux.HandleFunc("GET /api/oauth/credential", h.handleCredential)
	mux.HandleFunc("DELETE /api/oauth/credential", h.handleUnlink)
	mux.HandleFunc("GET /api/auth/user-seq-no", h.handleSubjectID)
}

type linkResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type pushCallbackRequest struct {
	Code string `json:"code"`
}

type credentialResponse struct {
	SubjectID string    `json:"user_seq_no"`
	TokenType string    `json:"token_type"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
	LinkedAt  time.Time `json:"linked_at"`
}

type subjectResponse struct {
	SubjectID string `json:"user_seq_no"`
}

func (h *Handler) handleStartLink(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	link, err := h.svc.StartLink(r.Context(), tok)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, linkResponse{AuthorizationURL: link.AuthorizationURL, State: link.State})
}

func (h *Handler) handlePushCallback(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	var req pushCallbackRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteInvalidBody(w)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		httpx.WriteAppError(w, r, h.log, apperr.Ef("oauthapi.push", apperr.InvalidInput, "code is required"))
		return
	}

	if err := h.svc.LinkWithCode(r.Context(), tok, code); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.NoContent(w)
}

// handleRedirectCallback always answers with a redirect; failures never
// render an error body.
func (h *Handler) handleRedirectCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			h.log.ErrorContext(r.Context(), "oauth.redirect.panic", "panic", v, "stack", string(debug.Stack()))
			h.redirect(w, r, h.cfg.ErrorURL)
		}
	}()

	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))

	if remoteErr := q.Get("error"); remoteErr != "" || code == "" || state == "" {
		h.log.InfoContext(r.Context(), "oauth.redirect.reject", "remote_error", remoteErr, "has_code", code != "", "has_state", state != "")
		h.redirect(w, r, h.cfg.ErrorURL)
		return
	}

	if _, err := h.svc.CompleteRedirect(r.Context(), code, state); err != nil {
		h.redirect(w, r, h.cfg.ErrorURL)
		return
	}
	h.redirect(w, r, h.cfg.SuccessURL)
}

func (h *Handler) handleCredential(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	c, err := h.svc.ExternalCredential(r.Context(), tok)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credentialResponse{
		SubjectID: c.SubjectID,
		TokenType: c.TokenType,
		Scope:     c.Scope,
		ExpiresAt: c.ExpiresAt,
		LinkedAt:  c.UpdatedAt,
	})
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	if err := h.svc.Unlink(r.Context(), tok); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleSubjectID(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	subject, err := h.svc.SubjectID(r.Context(), tok)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, subjectResponse{SubjectID: subject})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

func requireBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := httpx.BearerToken(r)
	if tok == "" {
		httpx.WriteUnauthorized(w)
		return "", false
	}
	return tok, true
}
