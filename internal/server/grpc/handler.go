package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

func toAPIAccount(a models.AccountDTO) api.Account {
	return api.Account{ID: a.ID, Email: a.Email, IsActivated: a.IsActivated}
}

func toAuthResponse(r *models.AuthResult) *api.AuthResponse {
	return &api.AuthResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Account:      toAPIAccount(r.Account),
	}
}

// logFailure logs internal failures at error level and client mistakes at info.
func (s *GRPCServer) logFailure(ctx context.Context, op string, err error) {
	kind := common.Kind(err)
	if kind == "internal" {
		s.logger.Error(ctx, op+" failed", "error", err)
		return
	}
	s.logger.Info(ctx, op+" rejected", "reason", kind)
}

func (s *GRPCServer) Registration(ctx context.Context, req *api.RegistrationRequest) (*api.AuthResponse, error) {

	s.logger.Info(ctx, "Registration request")

	result, err := s.accounts.Registration(ctx, req.Email, req.Password)
	if err != nil {
		s.logFailure(ctx, "registration", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "account_id", result.Account.ID)
	return toAuthResponse(result), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {

	result, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.logFailure(ctx, "login", err)
		return nil, toStatus(err)
	}

	return toAuthResponse(result), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {

	n, err := s.accounts.Logout(ctx, req.RefreshToken)
	if err != nil {
		s.logFailure(ctx, "logout", err)
		return nil, toStatus(err)
	}

	return &api.LogoutResponse{Deleted: n}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.AuthResponse, error) {

	result, err := s.accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		s.logFailure(ctx, "refresh", err)
		return nil, toStatus(err)
	}

	return toAuthResponse(result), nil
}

func (s *GRPCServer) ListAccounts(ctx context.Context, req *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {

	list, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		s.logFailure(ctx, "list accounts", err)
		return nil, toStatus(err)
	}

	out := make([]api.Account, 0, len(list))
	for _, a := range list {
		out = append(out, toAPIAccount(a))
	}
	return &api.ListAccountsResponse{Accounts: out}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}
