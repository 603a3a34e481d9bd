// Package accounts declares the credential store contract and its
// PostgreSQL and in-memory implementations.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists accounts keyed by email.
type Repository interface {
	// FindByEmail returns common.ErrorNotFound when no account has email.
	FindByEmail(ctx context.Context, email string) (*models.Account, error)

	// FindByID returns common.ErrorNotFound when no account has id.
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// Create stores account. The caller assigns ID. A second account with the
	// same email is rejected with common.ErrDuplicateAccount.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// ListAll returns every account in store-natural order.
	ListAll(ctx context.Context) ([]*models.Account, error)
}
