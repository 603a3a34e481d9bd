package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
)

type Client interface {
	Close() error
	Registration(ctx context.Context, email, password string) (*api.Account, error)
	Login(ctx context.Context, email, password string) (*api.Account, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*api.Account, error)
	ListAccounts(ctx context.Context) ([]api.Account, error)
	Ping(ctx context.Context) error
	Current() *api.Account
}
