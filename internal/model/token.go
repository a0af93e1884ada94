package model

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionUser is the user summary attached to a login response.
type SessionUser struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResult is a token pair plus the public fields of the user.
type LoginResult struct {
	TokenPair
	User SessionUser `json:"user"`
}

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
}
