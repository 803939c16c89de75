// Package linking connects local accounts to the open-banking provider.
//
// Two entry points store a provider credential: the push path, where an
// authenticated client hands over an authorization code, and the pull path,
// where the provider redirects the browser back with a code and the state
// minted by StartLink. The remote code exchange never runs inside a
// transaction.
package linking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/metrics"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/provider"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// Authenticator resolves bearer access tokens to account ids.
type Authenticator interface {
	ResolveAccountID(ctx context.Context, accessToken string) (string, error)
}

// Exchanger is the provider client.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (provider.Token, error)
}

// Service implements account linking.
type Service struct {
	log      *slog.Logger
	auth     Authenticator
	sessions *correlation.Manager
	remote   Exchanger
	store    Store
	tx       storage.TxManager
	now      func() time.Time
}

// NewService wires the linking service. A nil now uses time.Now.
func NewService(log *slog.Logger, auth Authenticator, sessions *correlation.Manager, remote Exchanger, store Store, tx storage.TxManager, now func() time.Time) *Service {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		log:      log,
		auth:     auth,
		sessions: sessions,
		remote:   remote,
		store:    store,
		tx:       tx,
		now:      now,
	}
}

// Link is the browser entry point for a new authorization.
type Link struct {
	AuthorizationURL string
	State            string
}

// StartLink opens a correlation session for the caller and returns the
// provider authorization URL carrying its state.
func (s *Service) StartLink(ctx context.Context, accessToken string) (link Link, err error) {
	defer func() { metrics.ObserveOAuth("start_link", err) }()

	accountID, err := s.auth.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return Link{}, err
	}

	sess, err := s.sessions.Create(ctx, accountID)
	if err != nil {
		s.log.ErrorContext(ctx, "oauth.start_link.fail", "account_id", accountID, "err", err)
		return Link{}, err
	}

	return Link{AuthorizationURL: s.remote.AuthCodeURL(sess.State), State: sess.State}, nil
}

// LinkWithCode exchanges code for the caller and stores the credential.
func (s *Service) LinkWithCode(ctx context.Context, accessToken, code string) (err error) {
	const op = "linking.LinkWithCode"
	defer func() { metrics.ObserveOAuth("link_push", err) }()

	accountID, err := s.auth.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return err
	}

	tok, err := s.remote.Exchange(ctx, code)
	if err != nil {
		s.log.WarnContext(ctx, "oauth.link_push.exchange.fail", "account_id", accountID, "code", provider.CodePrefix(code), "err", err)
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.store.Replace(ctx, s.credential(accountID, tok))
	})
	if err != nil {
		s.log.ErrorContext(ctx, "oauth.link_push.store.fail", "account_id", accountID, "err", err)
		return apperr.E(op, apperr.Internal, err)
	}

	s.log.InfoContext(ctx, "oauth.link_push.ok", "account_id", accountID, "subject_id", tok.SubjectID)
	return nil
}

// CompleteRedirect finishes the pull path: it validates state, exchanges code
// and, in one transaction, stores the credential and completes the session.
func (s *Service) CompleteRedirect(ctx context.Context, code, state string) (accountID string, err error) {
	const op = "linking.CompleteRedirect"
	defer func() { metrics.ObserveOAuth("link_redirect", err) }()

	sess, err := s.sessions.Validate(ctx, state)
	if err != nil {
		s.log.InfoContext(ctx, "oauth.redirect.state.reject", "err", err)
		return "", err
	}

	tok, err := s.remote.Exchange(ctx, code)
	if err != nil {
		s.log.WarnContext(ctx, "oauth.redirect.exchange.fail", "account_id", sess.AccountID, "code", provider.CodePrefix(code), "err", err)
		return "", err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Replace(ctx, s.credential(sess.AccountID, tok)); err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		// Superseded or swept while the exchange was in flight.
		return s.sessions.Complete(ctx, state)
	})
	if err != nil {
		s.log.WarnContext(ctx, "oauth.redirect.complete.fail", "account_id", sess.AccountID, "err", err)
		return "", err
	}

	s.log.InfoContext(ctx, "oauth.redirect.ok", "account_id", sess.AccountID, "subject_id", tok.SubjectID)
	return sess.AccountID, nil
}

// ExternalCredential returns the caller's stored provider credential. Stored
// credentials are never refreshed; an expired one must be relinked.
func (s *Service) ExternalCredential(ctx context.Context, accessToken string) (Credential, error) {
	const op = "linking.ExternalCredential"

	accountID, err := s.auth.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return Credential{}, err
	}

	c, err := s.store.Get(ctx, accountID)
	if errors.Is(err, ErrCredentialNotFound) {
		return Credential{}, apperr.E(op, apperr.SubjectNotFound, err)
	}
	if err != nil {
		return Credential{}, apperr.E(op, apperr.Internal, err)
	}
	if !s.now().Before(c.ExpiresAt) {
		return Credential{}, apperr.Ef(op, apperr.ExpiredToken, "provider credential expired")
	}
	return c, nil
}

// SubjectID returns the provider user sequence number linked to the caller.
func (s *Service) SubjectID(ctx context.Context, accessToken string) (string, error) {
	c, err := s.ExternalCredential(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return c.SubjectID, nil
}

// Unlink removes the caller's credential. Unlinking twice is not an error.
func (s *Service) Unlink(ctx context.Context, accessToken string) (err error) {
	const op = "linking.Unlink"
	defer func() { metrics.ObserveOAuth("unlink", err) }()

	accountID, err := s.auth.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return err
	}
	removed, err := s.store.Delete(ctx, accountID)
	if err != nil {
		return apperr.E(op, apperr.Internal, err)
	}
	if removed {
		s.log.InfoContext(ctx, "oauth.unlink.ok", "account_id", accountID)
	}
	return nil
}

func (s *Service) credential(accountID string, tok provider.Token) Credential {
	now := s.now().UTC()
	return Credential{
		AccountID:    accountID,
		SubjectID:    tok.SubjectID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        tok.Scope,
		ExpiresIn:    tok.ExpiresIn,
		ExpiresAt:    tok.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
