package session

import (
	"context"
	"time"
)

// Service mints token pairs and records them in the ledger.
type Service struct {
	codec  Codec
	ledger *Ledger
	now    func() time.Time
}

// Issued is a freshly minted and recorded pair.
type Issued struct {
	PairID           string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// NewService wires a codec and ledger. A nil now uses time.Now.
func NewService(codec Codec, ledger *Ledger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{codec: codec, ledger: ledger, now: now}
}

// Codec returns the codec used for verification.
func (s *Service) Codec() Codec { return s.codec }

// Ledger returns the pair ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

// Issue mints an access and refresh token for accountID and records the pair.
// Run it inside the caller's transaction to make issuance atomic with any
// preceding revocation.
func (s *Service) Issue(ctx context.Context, accountID, role string) (Issued, error) {
	now := s.Now()

	access, accessExp, err := s.codec.IssueAccess(accountID, role, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(accountID, now)
	if err != nil {
		return Issued{}, err
	}

	p, err := s.ledger.RecordIssued(ctx, accountID, access, refresh, accessExp, refreshExp, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		PairID:           p.ID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
