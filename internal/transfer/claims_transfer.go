package transfer

import "github.com/golang-jwt/jwt/v5"

// CustomClaims are the session claims issued by the auth backend.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
