package authapi

import (
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
)

func toAccountResponse(a identity.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Handle:    a.Handle,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}

func toSessionResponse(issued session.Issued, now time.Time) sessionResponse {
	expiresIn := int64(issued.AccessExpiresAt.Sub(now) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return sessionResponse{
		PairID:           issued.PairID,
		TokenType:        "Bearer",
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExpiresAt,
		ExpiresIn:        expiresIn,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExpiresAt,
	}
}
