package directory

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keygate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x52908400098527886e0f7030069857d2e4169ee7"

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestAuthenticate(t *testing.T) {
	key := newKey(t)
	issuer := NewIssuer(key, "")
	dir := NewJWTDirectory(&key.PublicKey, "")

	token, err := issuer.Issue(core.User{ID: testAddress, Role: core.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	user, err := dir.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", user.ID)
	assert.True(t, user.IsAdmin())
}

func TestAuthenticateUnknownRoleIsStandard(t *testing.T) {
	key := newKey(t)
	token, err := NewIssuer(key, "").Issue(core.User{ID: testAddress, Role: "superuser"}, time.Minute)
	require.NoError(t, err)

	user, err := NewJWTDirectory(&key.PublicKey, "").Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, core.RoleUser, user.Role)
}

func TestAuthenticateRejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	dir := NewJWTDirectory(&key.PublicKey, "")

	expired, err := NewIssuer(key, "").Issue(core.User{ID: testAddress}, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewIssuer(other, "").Issue(core.User{ID: testAddress}, time.Minute)
	require.NoError(t, err)
	wrongAud, err := NewIssuer(key, "other").Issue(core.User{ID: testAddress}, time.Minute)
	require.NoError(t, err)
	notAddress, err := NewIssuer(key, "").Issue(core.User{ID: "alice"}, time.Minute)
	require.NoError(t, err)
	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testAddress,
			Audience:  jwt.ClaimStrings{AudienceApp},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":     expired,
		"foreign key": foreign,
		"audience":    wrongAud,
		"subject":     notAddress,
		"hmac":        hmac,
		"garbage":     "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := dir.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, core.ErrInvalidToken)
		})
	}
}
