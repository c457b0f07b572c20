package directory

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// AudienceApp is the default audience of application user tokens
const AudienceApp = "session:access"

// JWTDirectory implements the UserDirectory interface by verifying ES256 access tokens.
// The subject of a token is the user's ethereum address.
type JWTDirectory struct {
	verifyKey *ecdsa.PublicKey
	audience  string
}

// NewJWTDirectory creates a directory that trusts tokens signed by the holder of verifyKey
func NewJWTDirectory(verifyKey *ecdsa.PublicKey, audience string) ports.UserDirectory {
	if audience == "" {
		audience = AudienceApp
	}
	return &JWTDirectory{verifyKey: verifyKey, audience: audience}
}

// NewJWTDirectoryFromPEM parses a PEM encoded ECDSA public key
func NewJWTDirectoryFromPEM(pemKey []byte, audience string) (ports.UserDirectory, error) {
	key, err := jwt.ParseECPublicKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return NewJWTDirectory(key, audience), nil
}

// Authenticate parses the access token and returns the user it names
func (d *JWTDirectory) Authenticate(ctx context.Context, credential string) (core.User, error) {
	token, err := jwt.ParseWithClaims(credential, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.verifyKey, nil
	}, jwt.WithAudience(d.audience), jwt.WithExpirationRequired())
	if err != nil {
		return core.User{}, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return core.User{}, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return core.User{}, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	if !common.IsHexAddress(claims.Subject) {
		return core.User{}, fmt.Errorf("subject is not an address: %w", core.ErrInvalidToken)
	}

	role := core.RoleUser
	if claims.Role == string(core.RoleAdmin) {
		role = core.RoleAdmin
	}

	return core.User{
		ID:   core.NormalizeUserID(claims.Subject),
		Role: role,
	}, nil
}

// Issuer signs application user tokens; used by tooling and tests
type Issuer struct {
	signKey  *ecdsa.PrivateKey
	audience string
}

// NewIssuer creates a token issuer for the given key
func NewIssuer(signKey *ecdsa.PrivateKey, audience string) *Issuer {
	if audience == "" {
		audience = AudienceApp
	}
	return &Issuer{signKey: signKey, audience: audience}
}

// Issue signs a token for user valid for ttl
func (i *Issuer) Issue(user core.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{i.audience},
		},
		Role: string(user.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}
