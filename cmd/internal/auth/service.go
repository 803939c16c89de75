package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Hana-Open-Banking/one-car/cmd/identity"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/metrics"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// Service implements the session lifecycle for local accounts.
type Service struct {
	log       *slog.Logger
	accounts  identity.Store
	passwords *identity.Passwords
	sessions  *session.Service
	tx        storage.TxManager
}

// NewService wires the authentication service.
func NewService(log *slog.Logger, accounts identity.Store, passwords *identity.Passwords, sessions *session.Service, tx storage.TxManager) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:       log,
		accounts:  accounts,
		passwords: passwords,
		sessions:  sessions,
		tx:        tx,
	}
}

// SignUpInput is a registration request.
type SignUpInput struct {
	Handle          string
	Password        string
	PasswordConfirm string
	Name            string
	Email           string
	Phone           string
}

// Result is an authenticated account with its freshly issued pair.
type Result struct {
	Account identity.Account
	Session session.Issued
}

// Principal is the identity behind a verified access token.
type Principal struct {
	AccountID string
	Role      identity.Role
}

// SignUp registers an account and signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (res Result, err error) {
	const op = "auth.SignUp"
	defer func() { metrics.ObserveAuth("signup", err) }()

	profile := identity.Profile{
		Handle: strings.TrimSpace(in.Handle),
		Name:   strings.TrimSpace(in.Name),
		Email:  strings.TrimSpace(in.Email),
		Phone:  strings.TrimSpace(in.Phone),
	}
	if err := identity.ValidateProfile(profile); err != nil {
		return Result{}, invalidInput(op, err)
	}
	if err := s.passwords.Validate(in.Password); err != nil {
		return Result{}, invalidInput(op, err)
	}
	if in.Password != in.PasswordConfirm {
		return Result{}, apperr.E(op, apperr.PasswordMismatch, nil)
	}

	// Hashing is slow; keep it outside the transaction.
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		err = hashFailure(op, err)
		s.logFailure(ctx, "auth.signup.hash.fail", err)
		return Result{}, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureUnique(ctx, op, profile); err != nil {
			return err
		}

		created, err := s.accounts.CreateAccount(ctx, identity.NewAccount{
			Handle:       profile.Handle,
			PasswordHash: hash,
			Name:         profile.Name,
			Email:        profile.Email,
			Phone:        profile.Phone,
			Role:         identity.RoleUser,
			Now:          s.sessions.Now(),
		})
		if err != nil {
			if field, ok := identity.ConflictField(err); ok {
				return apperr.E(op, duplicateKind(field), err)
			}
			return apperr.E(op, apperr.Internal, err)
		}

		// Re-read so storage defaults are reflected in the response.
		acct, err := s.accounts.GetByHandle(ctx, created.Handle)
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}

		issued, err := s.sessions.Issue(ctx, acct.PrincipalID(), string(acct.GrantedRole()))
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}

		res = Result{Account: acct, Session: issued}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "auth.signup.fail", err)
		return Result{}, err
	}

	s.log.InfoContext(ctx, "auth.signup.ok", "account_id", res.Account.ID)
	return res, nil
}

// ensureUnique checks handle, then email, then phone. The first taken field wins.
func (s *Service) ensureUnique(ctx context.Context, op string, p identity.Profile) error {
	checks := []struct {
		exists func(context.Context, string) (bool, error)
		value  string
		kind   apperr.Kind
	}{
		{s.accounts.HandleExists, p.Handle, apperr.DuplicateHandle},
		{s.accounts.EmailExists, p.Email, apperr.DuplicateEmail},
		{s.accounts.PhoneExists, p.Phone, apperr.DuplicatePhone},
	}
	for _, c := range checks {
		taken, err := c.exists(ctx, c.value)
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		if taken {
			return apperr.E(op, c.kind, nil)
		}
	}
	return nil
}

// SignIn verifies credentials, revokes every prior pair of the account and
// issues a new one. Unknown handles, wrong passwords and deactivated accounts
// fail identically.
func (s *Service) SignIn(ctx context.Context, handle, password string) (res Result, err error) {
	const op = "auth.SignIn"
	defer func() { metrics.ObserveAuth("signin", err) }()

	acct, err := s.accounts.GetByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		if !identity.IsNotFound(err) {
			s.logFailure(ctx, "auth.signin.lookup.fail", err)
			return Result{}, apperr.E(op, apperr.Internal, err)
		}
		s.passwords.VerifyDummy(password)
		return Result{}, apperr.E(op, apperr.InvalidCredentials, nil)
	}

	if !s.passwords.Verify(acct, password) || !acct.IsActive() {
		return Result{}, apperr.E(op, apperr.InvalidCredentials, nil)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.sessions.Ledger().RevokeAllForAccount(ctx, acct.PrincipalID(), s.sessions.Now()); err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		issued, err := s.sessions.Issue(ctx, acct.PrincipalID(), string(acct.GrantedRole()))
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		res = Result{Account: acct, Session: issued}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "auth.signin.issue_session.fail", err)
		return Result{}, err
	}

	return res, nil
}

// SignOut revokes the pair holding accessToken.
func (s *Service) SignOut(ctx context.Context, accessToken string) (err error) {
	const op = "auth.SignOut"
	defer func() { metrics.ObserveAuth("signout", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ledger := s.sessions.Ledger()

		p, err := ledger.FindLiveByAccess(ctx, accessToken)
		if err != nil {
			return ledgerLookupErr(op, err)
		}
		changed, err := ledger.Revoke(ctx, p.ID, s.sessions.Now())
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		if !changed {
			return apperr.E(op, apperr.InvalidToken, nil)
		}
		return nil
	})
}

// SignOutEverywhere revokes every pair of the account behind accessToken.
func (s *Service) SignOutEverywhere(ctx context.Context, accessToken string) (n int64, err error) {
	const op = "auth.SignOutEverywhere"
	defer func() { metrics.ObserveAuth("signout_all", err) }()

	accountID, err := s.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	n, err = s.sessions.Ledger().RevokeAllForAccount(ctx, accountID, s.sessions.Now())
	if err != nil {
		return 0, apperr.E(op, apperr.Internal, err)
	}
	s.log.InfoContext(ctx, "auth.signout_all.ok", "account_id", accountID, "revoked", n)
	return n, nil
}

// Refresh rotates a refresh token: the old pair is revoked and a new pair is
// issued for the same account. Each refresh token is single-use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (issued session.Issued, err error) {
	const op = "auth.Refresh"
	defer func() { metrics.ObserveAuth("refresh", err) }()

	now := s.sessions.Now()

	claims, verr := s.sessions.Codec().Verify(refreshToken, now)
	switch {
	case verr == nil:
		if claims.Type != session.TypeRefresh {
			return session.Issued{}, apperr.E(op, apperr.InvalidToken, nil)
		}
	case errors.Is(verr, session.ErrExpired):
		// The ledger decides between unknown and expired.
	default:
		return session.Issued{}, apperr.E(op, apperr.InvalidToken, verr)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ledger := s.sessions.Ledger()

		p, err := ledger.FindLiveByRefresh(ctx, refreshToken)
		if err != nil {
			return ledgerLookupErr(op, err)
		}
		if !now.Before(p.RefreshExpiresAt) {
			return apperr.E(op, apperr.ExpiredToken, nil)
		}
		if verr == nil && claims.Subject != p.AccountID {
			return apperr.E(op, apperr.InvalidToken, nil)
		}

		acct, err := s.accounts.GetByID(ctx, p.AccountID)
		if err != nil {
			if identity.IsNotFound(err) {
				return apperr.E(op, apperr.UserNotFound, err)
			}
			return apperr.E(op, apperr.Internal, err)
		}
		if !acct.IsActive() {
			return apperr.E(op, apperr.UserNotFound, nil)
		}

		changed, err := ledger.Revoke(ctx, p.ID, now)
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		if !changed {
			return apperr.E(op, apperr.InvalidToken, nil)
		}

		issued, err = s.sessions.Issue(ctx, acct.PrincipalID(), string(acct.GrantedRole()))
		if err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "auth.refresh.fail", err)
		return session.Issued{}, err
	}
	return issued, nil
}

// ResolveAccountID turns a bearer access token into its account id.
func (s *Service) ResolveAccountID(ctx context.Context, accessToken string) (string, error) {
	p, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return p.AccountID, nil
}

// Authenticate verifies accessToken against the codec, the ledger and the
// account's activation state.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	const op = "auth.Authenticate"
	now := s.sessions.Now()

	claims, err := s.sessions.Codec().Verify(accessToken, now)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			return Principal{}, apperr.E(op, apperr.ExpiredToken, nil)
		}
		return Principal{}, apperr.E(op, apperr.InvalidToken, err)
	}
	if claims.Type != session.TypeAccess {
		return Principal{}, apperr.E(op, apperr.InvalidToken, nil)
	}

	p, err := s.sessions.Ledger().FindLiveByAccess(ctx, accessToken)
	if err != nil {
		return Principal{}, ledgerLookupErr(op, err)
	}
	if !now.Before(p.AccessExpiresAt) {
		return Principal{}, apperr.E(op, apperr.ExpiredToken, nil)
	}
	if p.AccountID != claims.Subject {
		return Principal{}, apperr.E(op, apperr.InvalidToken, nil)
	}

	acct, err := s.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Principal{}, apperr.E(op, apperr.InvalidToken, err)
		}
		return Principal{}, apperr.E(op, apperr.Internal, err)
	}
	if !acct.IsActive() {
		return Principal{}, apperr.E(op, apperr.InvalidToken, nil)
	}

	return Principal{AccountID: acct.PrincipalID(), Role: acct.GrantedRole()}, nil
}

// CheckHandleAvailability reports whether handle is well-formed and free.
func (s *Service) CheckHandleAvailability(ctx context.Context, handle string) (bool, error) {
	const op = "auth.CheckHandleAvailability"

	handle = strings.TrimSpace(handle)
	if err := identity.ValidateHandle(handle); err != nil {
		return false, invalidInput(op, err)
	}
	taken, err := s.accounts.HandleExists(ctx, handle)
	if err != nil {
		return false, apperr.E(op, apperr.Internal, err)
	}
	return !taken, nil
}

// Account returns the profile of accountID.
func (s *Service) Account(ctx context.Context, accountID string) (identity.Account, error) {
	const op = "auth.Account"

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, apperr.E(op, apperr.UserNotFound, err)
		}
		return identity.Account{}, apperr.E(op, apperr.Internal, err)
	}
	return acct, nil
}

// Deactivate disables accountID and revokes all of its pairs.
func (s *Service) Deactivate(ctx context.Context, accountID string) (err error) {
	const op = "auth.Deactivate"
	defer func() { metrics.ObserveAuth("deactivate", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.sessions.Now()
		if err := s.accounts.SetActive(ctx, accountID, false, now); err != nil {
			if identity.IsNotFound(err) {
				return apperr.E(op, apperr.UserNotFound, err)
			}
			return apperr.E(op, apperr.Internal, err)
		}
		if _, err := s.sessions.Ledger().RevokeAllForAccount(ctx, accountID, now); err != nil {
			return apperr.E(op, apperr.Internal, err)
		}
		return nil
	})
}

func (s *Service) logFailure(ctx context.Context, event string, err error) {
	k := apperr.KindOf(err)
	if k == apperr.Internal {
		s.log.ErrorContext(ctx, event, "err", err)
		return
	}
	s.log.DebugContext(ctx, event, "kind", k.Name)
}

func invalidInput(op string, err error) error {
	field := identity.InvalidField(err)
	if field == "" {
		field = "input"
	}
	return &apperr.Error{Op: op, Kind: apperr.InvalidInput, Detail: field, Err: err}
}

// hashFailure keeps policy rejections client-visible and treats anything
// else from the hasher as a server fault.
func hashFailure(op string, err error) error {
	if identity.IsInvalidInput(err) {
		return invalidInput(op, err)
	}
	return apperr.E(op, apperr.Internal, err)
}

func duplicateKind(field string) apperr.Kind {
	switch field {
	case identity.FieldEmail:
		return apperr.DuplicateEmail
	case identity.FieldPhone:
		return apperr.DuplicatePhone
	default:
		return apperr.DuplicateHandle
	}
}

func ledgerLookupErr(op string, err error) error {
	if errors.Is(err, session.ErrPairNotFound) {
		return apperr.E(op, apperr.InvalidToken, nil)
	}
	return apperr.E(op, apperr.Internal, err)
}
