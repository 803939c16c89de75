package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestWriteAppError(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"duplicate handle", apperr.E("op", apperr.DuplicateHandle, nil), 409, "U_001", "id is already in use"},
		{"invalid input detail", apperr.Ef("op", apperr.InvalidInput, "email"), 400, "C_003", "invalid input value: email"},
		{"expired detail hidden", apperr.Ef("op", apperr.ExpiredToken, "session expired"), 401, "T_002", "token has expired"},
		{"forbidden", apperr.E("op", apperr.Forbidden, nil), 403, "M_005", "access denied"},
		{"unclassified", errors.New("pq: secret detail"), 500, "C_001", "internal server error"},
		{"remote failure", apperr.E("op", apperr.RemoteExchangeFailed, errors.New("token endpoint 400: invalid_grant")), 500, "C_001", "internal server error"},
	}

	for _, tc := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		WriteAppError(rec, req, log, tc.err)

		if rec.Code != tc.wantStatus {
			t.Fatalf("%s: status = %d", tc.name, rec.Code)
		}
		got := decodeEnvelope(t, rec)
		if got.Code != tc.wantCode || got.Message != tc.wantMsg {
			t.Fatalf("%s: envelope = %+v", tc.name, got)
		}
		if strings.Contains(rec.Body.String(), "secret") || strings.Contains(rec.Body.String(), "invalid_grant") {
			t.Fatalf("%s: internal detail leaked: %s", tc.name, rec.Body.String())
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		max     int64
		wantErr bool
	}{
		{"ok", `{"name":"kim"}`, 0, false},
		{"unknown field", `{"name":"kim","x":1}`, 0, true},
		{"trailing data", `{"name":"kim"}{}`, 0, true},
		{"too large", `{"name":"` + strings.Repeat("a", 100) + `"}`, 16, true},
		{"not json", `name=kim`, 0, true},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		var dst payload
		err := DecodeJSON(rec, req, tc.max, &dst)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Bearer abc":    "abc",
		"bearer  abc  ": "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"":              "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := BearerToken(req); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "bogus, 203.0.113.7")

	if got := ClientIP(req, false).String(); got != "10.0.0.1" {
		t.Fatalf("untrusted = %s", got)
	}
	if got := ClientIP(req, true).String(); got != "203.0.113.7" {
		t.Fatalf("trusted = %s", got)
	}
}
