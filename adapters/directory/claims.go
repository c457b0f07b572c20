package directory

import "github.com/golang-jwt/jwt/v5"

// UserClaims combines standard claims with the application role
type UserClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
