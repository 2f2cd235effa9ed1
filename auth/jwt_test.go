package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-auction/domain"
)

func testAuth() Authenticator {
	return Authenticator{JWT: JWT{Secret: []byte("k"), TokenTTL: time.Hour}, HostPassword: "pw"}
}

func TestLoginRoundTrip(t *testing.T) {
	a := testAuth()
	tok, exp, claims, err := a.Login(" alice ", "student", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)
	assert.Equal(t, RoleParticipant, claims.Role)

	got, err := a.JWT.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identity)
	assert.Equal(t, "alice", got.Subject)
	assert.Equal(t, domain.AudienceParticipant, got.Audience())
}

func TestAuctioneerNeedsHostPassword(t *testing.T) {
	a := testAuth()
	_, _, _, err := a.Login("prof", "teacher", "nope")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	tok, _, _, err := a.Login("prof", "teacher", "pw")
	require.NoError(t, err)
	c, err := a.JWT.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.AudienceAuctioneer, c.Audience())

	_, _, _, err = a.Login("", "student", "")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, _, _, err = a.Login("x", "janitor", "")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	a := testAuth()
	tok, _, _, err := a.Login("alice", "", "")
	require.NoError(t, err)

	_, err = JWT{Secret: []byte("other")}.Verify(tok)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	expired, _, err := a.JWT.Sign(Claims{
		Identity:         "alice",
		Role:             RoleParticipant,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)
	_, err = a.JWT.Verify(expired)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Identity: "alice", Role: RoleParticipant})
	s, err := none.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = a.JWT.Verify(s)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
	assert.Empty(t, BearerToken(""))
}
