package authapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/httpx"
)

// Handler wires the account and session endpoints to auth.Service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *auth.Service
	now func() time.Time
}

// NewHandler constructs a Handler. A nil now uses time.Now.
func NewHandler(log *slog.Logger, cfg Config, svc *auth.Service, now func() time.Time) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Handler{log: log, cfg: cfg, svc: svc, now: now}
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/signup", h.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", h.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", h.handleSignOut)
	mux.HandleFunc("POST /api/auth/signout-all", h.handleSignOutAll)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("GET /api/auth/check-id/{handle}", h.handleCheckHandle)
	mux.HandleFunc("GET /api/auth/me", h.handleMe)
	mux.HandleFunc("POST /api/admin/accounts/{id}/deactivate", h.handleDeactivate)
}

// ---- handlers ----

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteInvalidBody(w)
		return
	}

	res, err := h.svc.SignUp(r.Context(), auth.SignUpInput{
		Handle:          req.ID,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
	})
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		Account: toAccountResponse(res.Account),
		Session: toSessionResponse(res.Session, h.now()),
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteInvalidBody(w)
		return
	}
	handle := strings.TrimSpace(req.ID)
	if handle == "" || req.Password == "" {
		httpx.WriteAppError(w, r, h.log, apperr.Ef("authapi.signin", apperr.InvalidInput, "id and password are required"))
		return
	}

	res, err := h.svc.SignIn(r.Context(), handle, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.InvalidCredentials) {
			h.log.InfoContext(r.Context(), "auth.signin.reject", "ip", httpx.ClientIP(r, h.cfg.TrustProxy))
		}
		httpx.WriteAppError(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse{
		Account: toAccountResponse(res.Account),
		Session: toSessionResponse(res.Session, h.now()),
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	if err := h.svc.SignOut(r.Context(), tok); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleSignOutAll(w http.ResponseWriter, r *http.Request) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.SignOutEverywhere(r.Context(), tok); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteInvalidBody(w)
		return
	}
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		httpx.WriteAppError(w, r, h.log, apperr.Ef("authapi.refresh", apperr.InvalidInput, "refresh_token is required"))
		return
	}

	issued, err := h.svc.Refresh(r.Context(), refresh)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(issued, h.now())})
}

func (h *Handler) handleCheckHandle(w http.ResponseWriter, r *http.Request) {
	available, err := h.svc.CheckHandleAvailability(r.Context(), r.PathValue("handle"))
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{Available: available})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	acct, err := h.svc.Account(r.Context(), p.AccountID)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{Account: toAccountResponse(acct)})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	if p.Role != identity.RoleAdmin {
		httpx.WriteAppError(w, r, h.log, apperr.E("authapi.deactivate", apperr.Forbidden, nil))
		return
	}

	target := strings.TrimSpace(r.PathValue("id"))
	if err := h.svc.Deactivate(r.Context(), target); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "auth.deactivate.ok", "account_id", target, "by", p.AccountID)
	httpx.NoContent(w)
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	tok, ok := requireBearer(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	p, err := h.svc.Authenticate(r.Context(), tok)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return auth.Principal{}, false
	}
	return p, true
}

func requireBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := httpx.BearerToken(r)
	if tok == "" {
		httpx.WriteUnauthorized(w)
		return "", false
	}
	return tok, true
}
