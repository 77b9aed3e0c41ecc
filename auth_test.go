package citadelcbt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ AuthProvider = (*LocalAuth)(nil)

func TestLocalAuthSignUpAndSignIn(t *testing.T) {
	auth := NewLocalAuth(newTestDB(t))
	ctx := context.Background()

	var events []*Identity
	unsubscribe := auth.Subscribe(func(identity *Identity) {
		events = append(events, identity)
	})

	identity, err := auth.SignUp(ctx, "Ada Obi", "Ada@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada Obi", identity.DisplayName)

	signedIn, err := auth.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Obi", signedIn.DisplayName)

	_, err = auth.SignIn(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, auth.SignOut(ctx, "ada@example.com"))
	require.Len(t, events, 3)
	assert.Nil(t, events[2])

	unsubscribe()
	_, err = auth.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestLocalAuthSignUpValidation(t *testing.T) {
	auth := NewLocalAuth(newTestDB(t))
	ctx := context.Background()

	_, err := auth.SignUp(ctx, "Ada", "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = auth.SignUp(ctx, "", "ada@example.com", "secret1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = auth.SignUp(ctx, "Ada", "ada@example.com", "short")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = auth.SignUp(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = auth.SignUp(ctx, "Ada Again", "ADA@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLocalAuthFederatedThenPassword(t *testing.T) {
	auth := NewLocalAuth(newTestDB(t))
	ctx := context.Background()

	identity, err := auth.SignInFederated(ctx, Identity{DisplayName: "Chidi", Email: "chidi@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Chidi", identity.DisplayName)

	// No password yet
	_, err = auth.SignIn(ctx, "chidi@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, auth.SetPassword(ctx, "chidi@example.com", "secret1"))
	_, err = auth.SignIn(ctx, "chidi@example.com", "secret1")
	require.NoError(t, err)

	// Second federated sign-in keeps the account and refreshes the name
	identity, err = auth.SignInFederated(ctx, Identity{DisplayName: "Chidi A.", Email: "chidi@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Chidi A.", identity.DisplayName)
	_, err = auth.SignIn(ctx, "chidi@example.com", "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, auth.SetPassword(ctx, "missing@example.com", "secret1"), ErrNotFound)
	assert.ErrorIs(t, auth.SetPassword(ctx, "chidi@example.com", "123"), ErrValidation)
}
