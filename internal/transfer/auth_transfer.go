package transfer

import "github.com/golang-jwt/jwt/v5"

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// CustomClaims is the session cookie and OAuth2 state payload.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
