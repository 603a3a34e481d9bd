package models

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by registration, login and refresh.
type AuthResult struct {
	TokenPair
	Account AccountDTO
}
