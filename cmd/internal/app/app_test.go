package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/provider"
	"github.com/Hana-Open-Banking/one-car/cmd/security/password"

	authapi "github.com/Hana-Open-Banking/one-car/cmd/internal/auth/api"
	oauthapi "github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/api"
)

func testConfig(t *testing.T, providerURL string) Config {
	t.Helper()

	server := DefaultServerConfig()
	server.SQLitePath = filepath.Join(t.TempDir(), "onecar.db")
	server.TokenHMACKey = "app-test-hmac-key-0123456789abcdef0123"
	server.RequireTokenHMAC = true

	sess := session.DefaultConfig()
	sess.Secret = "app-test-token-secret-0123456789abcdef"

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	prov := provider.DefaultConfig()
	prov.BaseURL = providerURL
	prov.ClientID = "client-id"
	prov.ClientSecret = "client-secret"
	prov.RedirectURI = "http://localhost/oauth/callback"

	return Config{
		Server:      server,
		Session:     sess,
		Password:    pw,
		Correlation: correlation.DefaultConfig(),
		Provider:    prov,
		AuthAPI:     authapi.DefaultConfig(),
		OAuthAPI:    oauthapi.DefaultConfig(),
	}
}

func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "remote-access",
			"token_type":    "Bearer",
			"expires_in":    7776000,
			"refresh_token": "remote-refresh",
			"scope":         "login inquiry transfer",
			"user_seq_no":   "1100034736",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	app    *App
	url    string
	client *http.Client
}

func newHarness(t *testing.T, opts ...func(*Config)) harness {
	t.Helper()

	cfg := testConfig(t, fakeProvider(t).URL)
	for _, opt := range opts {
		opt(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return harness{app: a, url: ts.URL, client: client}
}

func (h harness) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.url+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestApp_Probes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		if resp := h.do(t, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d", path, resp.StatusCode)
		}
	}

	resp := h.do(t, http.MethodGet, "/metrics", "", nil)
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "onecar_http_requests_total") {
		t.Fatalf("metrics status=%d body missing request counter", resp.StatusCode)
	}
}

func TestApp_ReadinessRequiresPostgres(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(c *Config) { c.Server.ReadinessRequireDB = true })

	if resp := h.do(t, http.MethodGet, "/readyz", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d want 503 on sqlite", resp.StatusCode)
	}
}

func TestApp_SignUpLinkAndRedirect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"id":               "driver1",
		"password":         "Abcd1234!",
		"password_confirm": "Abcd1234!",
		"name":             "Kim",
		"email":            "driver1@example.com",
		"phone":            "010-1234-5678",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status=%d", resp.StatusCode)
	}
	signup := decodeBody[struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}](t, resp)
	access := signup.Session.AccessToken

	resp = h.do(t, http.MethodPost, "/api/oauth/link", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("link status=%d", resp.StatusCode)
	}
	link := decodeBody[struct {
		AuthorizationURL string `json:"authorization_url"`
		State            string `json:"state"`
	}](t, resp)
	u, err := url.Parse(link.AuthorizationURL)
	if err != nil || u.Query().Get("state") != link.State {
		t.Fatalf("authorization url %q does not carry state %q", link.AuthorizationURL, link.State)
	}

	q := url.Values{"code": {"good-code"}, "state": {link.State}}
	resp = h.do(t, http.MethodGet, "/oauth/callback?"+q.Encode(), "", nil)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/oauth/success" {
		t.Fatalf("callback status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}

	// The state is single-use.
	resp = h.do(t, http.MethodGet, "/oauth/callback?"+q.Encode(), "", nil)
	if resp.Header.Get("Location") != "/oauth/error" {
		t.Fatalf("replayed callback location=%q", resp.Header.Get("Location"))
	}

	resp = h.do(t, http.MethodGet, "/api/auth/user-seq-no", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user-seq-no status=%d", resp.StatusCode)
	}
	if got := decodeBody[struct {
		SubjectID string `json:"user_seq_no"`
	}](t, resp); got.SubjectID != "1100034736" {
		t.Fatalf("subject=%q", got.SubjectID)
	}
}

func TestApp_SweepOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	resp := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"id":               "driver2",
		"password":         "Abcd1234!",
		"password_confirm": "Abcd1234!",
		"name":             "Lee",
		"email":            "driver2@example.com",
		"phone":            "010-2222-3333",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status=%d", resp.StatusCode)
	}
	access := decodeBody[struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}](t, resp).Session.AccessToken

	link, err := h.app.linking.StartLink(ctx, access)
	if err != nil {
		t.Fatalf("StartLink: %v", err)
	}

	h.app.sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }
	h.app.sweeper.sweepOnce(ctx)

	if _, err := h.app.linking.CompleteRedirect(ctx, "good-code", link.State); err == nil {
		t.Fatalf("swept state should be rejected")
	}
}

func TestNew_RejectsMissingHMACKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Server.TokenHMACKey = ""

	_, err := New(context.Background(), cfg, nil)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err=%v want ErrConfig", err)
	}
}
