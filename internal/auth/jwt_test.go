package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.GenerateAccessToken("user-1", "reader@leafline.test", "admin")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).GenerateAccessToken("u", "", "")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("s", -time.Minute)
	token, err := m.GenerateAccessToken("u", "", "")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTManager_SubjectOnly(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	got, err := NewJWTManager("s", time.Hour).ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", got.UserID)
}

func TestJWTManager_RejectsNoneAlg(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager("s", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	m := NewJWTManager("s", time.Hour)
	token, err := m.GenerateAccessToken("user-2", "e@x.test", "customer")
	require.NoError(t, err)

	claims, err := m.Validator()(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, "customer", claims.Role)

	_, err = m.Validator()("garbage")
	assert.Error(t, err)
}
