// Package services contains server-side business logic. This file implements
// AccountService, which handles registration, login, logout, token refresh
// and account listing on top of the credential and session stores.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Operation names used as metric labels.
const (
	OpRegistration = "registration"
	OpLogin        = "login"
	OpLogout       = "logout"
	OpRefresh      = "refresh"
	OpListAccounts = "list_accounts"
)

// AccountService provides account operations:
//   - Registration: create an account and open a session
//   - Login: verify credentials and open a session
//   - Logout: drop the session holding a refresh token
//   - Refresh: rotate a refresh token and mint a new pair
//   - ListAccounts: public projections of every account
type AccountService struct {
	accounts      accounts.Repository
	sessions      sessions.Repository
	tokens        *auth.TokenAuthority
	hasher        *auth.PasswordHasher
	notifier      notify.Notifier
	notifications bool
	apiURL        string
	validate      *validator.Validate
	logger        logging.Logger
	metrics       *metrics.Metrics
	newID         func() string
}

// NewAccountService wires the service. m may be nil.
func NewAccountService(
	ar accounts.Repository,
	sr sessions.Repository,
	tokens *auth.TokenAuthority,
	hasher *auth.PasswordHasher,
	notifier notify.Notifier,
	cfg *config.Config,
	logger logging.Logger,
	m *metrics.Metrics,
) *AccountService {
	return &AccountService{
		accounts:      ar,
		sessions:      sr,
		tokens:        tokens,
		hasher:        hasher,
		notifier:      notifier,
		notifications: cfg.NotificationsEnabled,
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		validate:      newValidator(),
		logger:        logger.With("module", "account_service"),
		metrics:       m,
		newID:         uuid.NewString,
	}
}

// Registration creates an account for email and returns a fresh token pair
// with the account projection. An existing email yields ErrDuplicateAccount.
func (s *AccountService) Registration(ctx context.Context, email, password string) (res *models.AuthResult, err error) {
	defer s.observe(OpRegistration, time.Now(), &err)

	if err := s.validateCredentials(email, password); err != nil {
		return nil, err
	}

	_, err = s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateAccount
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching account: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		ID:             s.newID(),
		Email:          email,
		PasswordHash:   hash,
		ActivationLink: s.newID(),
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	s.sendActivation(ctx, account)

	s.logger.Info(ctx, "Registered", "account_id", account.ID)
	return s.openSession(ctx, models.NewAccountDTO(account))
}

// Login verifies credentials. A missing account is ErrAccountNotFound and a
// wrong password is ErrInvalidCredentials; both take comparable time.
func (s *AccountService) Login(ctx context.Context, email, password string) (res *models.AuthResult, err error) {
	defer s.observe(OpLogin, time.Now(), &err)

	if err := s.validateCredentials(email, password); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error searching account: %w", err)
	}

	if !s.hasher.Compare(account.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}

	return s.openSession(ctx, models.NewAccountDTO(account))
}

// Logout removes the session holding refreshToken and returns the number of
// removed sessions. Unknown tokens are not an error.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) (n int64, err error) {
	defer s.observe(OpLogout, time.Now(), &err)

	if refreshToken == "" {
		return 0, nil
	}

	n, err = s.sessions.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return 0, fmt.Errorf("error deleting session: %w", err)
	}
	return n, nil
}

// Refresh validates refreshToken against both its signature and the session
// store, then rotates it. Every rejection is ErrorUnauthorized.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (res *models.AuthResult, err error) {
	defer s.observe(OpRefresh, time.Now(), &err)

	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "session lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if session.OwnerID != claims.ID {
		return nil, common.ErrorUnauthorized
	}

	account, err := s.accounts.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching account: %w", err)
	}

	return s.openSession(ctx, models.NewAccountDTO(account))
}

// ListAccounts returns the projection of every account in store order.
func (s *AccountService) ListAccounts(ctx context.Context) (list []models.AccountDTO, err error) {
	defer s.observe(OpListAccounts, time.Now(), &err)

	all, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}

	list = make([]models.AccountDTO, 0, len(all))
	for _, a := range all {
		list = append(list, models.NewAccountDTO(a))
	}
	return list, nil
}

// ActivationURL returns the public activation address for link.
func (s *AccountService) ActivationURL(link string) string {
	return s.apiURL + "/api/activate/" + link
}

// --- helpers below ---

func (s *AccountService) openSession(ctx context.Context, dto models.AccountDTO) (*models.AuthResult, error) {
	pair, err := s.tokens.IssuePair(dto)
	if err != nil {
		return nil, fmt.Errorf("error issuing tokens: %w", err)
	}

	if err := s.sessions.Upsert(ctx, dto.ID, pair.RefreshToken, s.tokens.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("error saving session: %w", err)
	}

	return &models.AuthResult{TokenPair: pair, Account: dto}, nil
}

func (s *AccountService) sendActivation(ctx context.Context, a *models.Account) {
	if !s.notifications || s.notifier == nil {
		return
	}
	if err := s.notifier.SendActivation(ctx, a.Email, s.ActivationURL(a.ActivationLink)); err != nil {
		s.logger.Warn(ctx, "activation notification failed", "account_id", a.ID, "error", err)
	}
}

func (s *AccountService) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, *err, time.Since(start))
}
