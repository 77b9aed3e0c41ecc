package citadelcbt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue(Identity{DisplayName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	identity, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada", identity.DisplayName)
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Issue(Identity{Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Two hours later the token has expired
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
