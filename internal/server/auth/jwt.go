// Package auth issues and verifies the bearer tokens handed out by the
// account service, and hashes account passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer          = "gophauth"
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// Claims is the JWT payload: registered claims plus the account projection.
type Claims struct {
	jwt.RegisteredClaims
	AccountID   string `json:"id"`
	Email       string `json:"email"`
	IsActivated bool   `json:"isActivated"`
}

// TokenAuthority signs access and refresh tokens with separate secrets and
// lifetimes. It keeps no state besides its configuration.
type TokenAuthority struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option customises a TokenAuthority.
type Option func(*TokenAuthority)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *TokenAuthority) { a.now = now }
}

func NewTokenAuthority(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) *TokenAuthority {
	a := &TokenAuthority{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RefreshTTL is the lifetime given to refresh tokens; session stores use it
// as the row expiry.
func (a *TokenAuthority) RefreshTTL() time.Duration { return a.refreshTTL }

// IssuePair signs claims into a fresh access/refresh pair. Every token gets
// a random jti, so two pairs for the same account never collide.
func (a *TokenAuthority) IssuePair(claims models.AccountDTO) (models.TokenPair, error) {
	now := a.now()

	access, err := a.sign(claims, audienceAccess, a.accessSecret, now, a.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := a.sign(claims, audienceRefresh, a.refreshSecret, now, a.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess returns the projection carried by an access token.
func (a *TokenAuthority) VerifyAccess(token string) (models.AccountDTO, error) {
	return a.verify(token, audienceAccess, a.accessSecret)
}

// VerifyRefresh returns the projection carried by a refresh token.
func (a *TokenAuthority) VerifyRefresh(token string) (models.AccountDTO, error) {
	return a.verify(token, audienceRefresh, a.refreshSecret)
}

func (a *TokenAuthority) sign(dto models.AccountDTO, audience string, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   dto.ID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID:   dto.ID,
		Email:       dto.Email,
		IsActivated: dto.IsActivated,
	})

	return token.SignedString(secret)
}

func (a *TokenAuthority) verify(tokenString, audience string, secret []byte) (models.AccountDTO, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.AccountDTO{}, common.ErrTokenExpired
		}
		return models.AccountDTO{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.AccountID == "" {
		return models.AccountDTO{}, common.ErrInvalidToken
	}

	return models.AccountDTO{
		ID:          claims.AccountID,
		Email:       claims.Email,
		IsActivated: claims.IsActivated,
	}, nil
}
