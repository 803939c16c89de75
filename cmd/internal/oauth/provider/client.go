// Package provider talks to the open-banking authorization server.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/metrics"
)

const (
	authorizePath = "/oauth/2.0/authorize"
	tokenPath     = "/oauth/2.0/token"
)

// Token is the credential returned by a successful code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	ExpiresAt    time.Time
	SubjectID    string
	UserName     string
}

// Client exchanges authorization codes with the provider.
type Client struct {
	log     *slog.Logger
	oauth   *oauth2.Config
	http    *http.Client
	timeout time.Duration
	now     func() time.Time
}

// NewClient builds a Client from cfg. A nil now uses time.Now.
func NewClient(log *slog.Logger, cfg Config, now func() time.Time) *Client {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		log: log,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + authorizePath,
				TokenURL:  base + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		now:     now,
	}
}

// AuthCodeURL returns the browser URL that starts authorization for state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("auth_type", "0"))
}

// Exchange trades code for a provider token. Every failure is reported as
// RemoteExchangeFailed; the remote detail stays in the wrapped error.
func (c *Client) Exchange(ctx context.Context, code string) (tok Token, err error) {
	const op = "provider.Exchange"

	start := time.Now()
	defer func() {
		metrics.ProviderExchangeDuration.WithLabelValues(metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	}()

	code = strings.TrimSpace(code)
	if code == "" {
		return Token{}, apperr.Ef(op, apperr.InvalidInput, "authorization code is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	raw, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.log.WarnContext(ctx, "oauth.exchange.fail", "code", CodePrefix(code), "err", err)
		return Token{}, apperr.E(op, apperr.RemoteExchangeFailed, describe(err))
	}

	tok = Token{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		TokenType:    raw.TokenType,
		Scope:        extraString(raw, "scope"),
		ExpiresIn:    extraInt(raw, "expires_in"),
		SubjectID:    extraString(raw, "user_seq_no"),
		UserName:     extraString(raw, "user_name"),
	}
	if tok.AccessToken == "" {
		return Token{}, apperr.E(op, apperr.RemoteExchangeFailed, errors.New("response without access_token"))
	}
	if tok.SubjectID == "" {
		return Token{}, apperr.E(op, apperr.RemoteExchangeFailed, errors.New("response without user_seq_no"))
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	now := c.now().UTC().Truncate(time.Second)
	switch {
	case tok.ExpiresIn > 0:
		tok.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !raw.Expiry.IsZero():
		tok.ExpiresAt = raw.Expiry.UTC()
		tok.ExpiresIn = int64(tok.ExpiresAt.Sub(now) / time.Second)
	default:
		return Token{}, apperr.E(op, apperr.RemoteExchangeFailed, errors.New("response without expires_in"))
	}

	return tok, nil
}

// CodePrefix shortens an authorization code for logs.
func CodePrefix(code string) string {
	const keep = 6
	if len(code) <= keep {
		return "***"
	}
	return code[:keep] + "..."
}

func describe(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if re.ErrorCode != "" {
			return fmt.Errorf("token endpoint %d: %s", re.Response.StatusCode, re.ErrorCode)
		}
		return fmt.Errorf("token endpoint %d", re.Response.StatusCode)
	}
	return err
}

func extraInt(tok *oauth2.Token, key string) int64 {
	n, err := strconv.ParseInt(extraString(tok, key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// extraString reads a response field the provider may send as a string or a
// JSON number.
func extraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
