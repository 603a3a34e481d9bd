package models

import "time"

// Account is the stored credential record. PasswordHash and ActivationLink
// never leave the service layer; responses carry an AccountDTO instead.
type Account struct {
	ID             string
	Email          string
	PasswordHash   string
	ActivationLink string
	IsActivated    bool
	CreatedAt      time.Time
}

// AccountDTO is the public projection of an Account. It is also the claim
// set embedded in access and refresh tokens.
type AccountDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActivated bool   `json:"isActivated"`
}

// NewAccountDTO is the only place an AccountDTO is built from an Account.
func NewAccountDTO(a *Account) AccountDTO {
	return AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		IsActivated: a.IsActivated,
	}
}
