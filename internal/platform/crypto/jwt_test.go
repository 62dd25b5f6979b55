package crypto

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, jti, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	assert.Equal(t, jti, claims.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	good, _, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)
	expired, _, err := GenerateToken("secret", "user-1", -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Sub:              "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	foreignStr, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]struct {
		secret string
		token  string
	}{
		"wrong secret": {"other", good},
		"expired":      {"secret", expired},
		"garbage":      {"secret", "not-a-token"},
		"wrong issuer": {"secret", foreignStr},
		"empty token":  {"secret", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	_, _, err := GenerateToken("", "user-1", time.Hour)
	assert.Error(t, err)
}
