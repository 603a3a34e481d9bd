package models

import "time"

// Session is the single live refresh token of an account.
type Session struct {
	OwnerID      string
	RefreshToken string
	ExpiresAt    time.Time
}
