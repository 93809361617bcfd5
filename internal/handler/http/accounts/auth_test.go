package accounts_http

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseNormalisesClaims(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", zap.NewNop())

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PreferredUsername: "alice.l",
		Roles:             []string{"ROLE_admin", "user"},
		RegisteredClaims:  jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	actor, err := auth.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.ID)
	assert.Equal(t, "alice.l", actor.Name)
	assert.True(t, actor.IsAdmin())
	assert.True(t, actor.HasRole(RoleUser))
}

func TestParseRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(testSecret, "ledger", zap.NewNop())

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "ledger"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Parse(noSubject)
	assert.Error(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "elsewhere"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Parse(wrongIssuer)
	assert.Error(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "ledger"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Parse(unsigned)
	assert.Error(t, err)
}
