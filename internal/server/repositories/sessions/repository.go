// Package sessions declares the refresh-token session store contract and
// its PostgreSQL, Redis and in-memory implementations.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository keeps at most one live refresh token per owner.
type Repository interface {
	// Upsert atomically replaces the owner's session with token. The previous
	// token of that owner, if any, stops being findable.
	Upsert(ctx context.Context, ownerID string, token string, validity time.Duration) error

	// FindByToken returns common.ErrorNotFound when token is not the live
	// token of any owner.
	FindByToken(ctx context.Context, token string) (*models.Session, error)

	// DeleteByToken removes the session holding token and reports how many
	// sessions were removed. Deleting an unknown token is not an error.
	DeleteByToken(ctx context.Context, token string) (int64, error)
}
