package identity

import (
	"context"
	"testing"
	"time"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/repository/memory"
	"chatbot-be/internal/repository/specification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProviderFixture(t *testing.T) (*JWTProvider, *memory.RepositoryFactory) {
	t.Helper()
	factory := memory.NewRepositoryFactory()
	provider := NewJWTProvider(factory, "test-secret", time.Hour, 30*24*time.Hour)
	return provider, factory
}

func TestSignUpIssuesCredentials(t *testing.T) {
	provider, _ := newProviderFixture(t)

	cred, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	assert.NotEmpty(t, cred.AccessToken)
	assert.NotEmpty(t, cred.RefreshToken)
	assert.Equal(t, "user@example.com", cred.Identity.Email)
	assert.True(t, cred.ExpiresAt.After(time.Now()))
}

func TestSignUpRejectsMalformedCredentials(t *testing.T) {
	provider, factory := newProviderFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty everything", "", ""},
		{"not an email", "not-an-email", "secret123"},
		{"password too short", "user@example.com", "short"},
		{"missing password", "user@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.SignUp(context.Background(), tt.email, tt.password)
			var authErr *apperr.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, "invalid email or password format", authErr.Reason)
		})
	}

	// Nothing was persisted for any of the rejected attempts.
	uow := factory.NewUnitOfWork(context.Background())
	user, err := uow.UserRepository().FindOne(context.Background(),
		specification.ByEmail{Email: "user@example.com"},
	)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSignInRejectsMalformedCredentials(t *testing.T) {
	provider, _ := newProviderFixture(t)

	_, err := provider.SignIn(context.Background(), "", "")
	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid credentials", authErr.Reason)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	provider, _ := newProviderFixture(t)

	_, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	_, err = provider.SignUp(context.Background(), "user@example.com", "other456")
	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "email already registered", authErr.Reason)
}

func TestSignInVerifiesPassword(t *testing.T) {
	provider, _ := newProviderFixture(t)
	_, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	cred, err := provider.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cred.Identity.Email)

	_, err = provider.SignIn(context.Background(), "user@example.com", "wrong")
	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid credentials", authErr.Reason)

	// Unknown accounts fail the same way as wrong passwords.
	_, err = provider.SignIn(context.Background(), "nobody@example.com", "secret123")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid credentials", authErr.Reason)
}

func TestIntrospectRoundTrip(t *testing.T) {
	provider, _ := newProviderFixture(t)
	cred, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	ident, expiresAt, err := provider.Introspect(cred.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, cred.Identity.UserId, ident.UserId)
	assert.Equal(t, "user@example.com", ident.Email)
	assert.WithinDuration(t, cred.ExpiresAt, expiresAt, time.Second)
}

func TestIntrospectRejectsGarbageAndForgedTokens(t *testing.T) {
	provider, _ := newProviderFixture(t)

	_, _, err := provider.Introspect("not-a-token")
	var authErr *apperr.AuthError
	assert.ErrorAs(t, err, &authErr)

	other := NewJWTProvider(memory.NewRepositoryFactory(), "different-secret", time.Hour, time.Hour)
	cred, err := other.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	_, _, err = provider.Introspect(cred.AccessToken)
	assert.ErrorAs(t, err, &authErr)
}

func TestSignOutRevokesRefreshTokens(t *testing.T) {
	provider, factory := newProviderFixture(t)
	cred, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(context.Background(), cred))

	uow := factory.NewUnitOfWork(context.Background())
	token, err := uow.UserRepository().FindRefreshToken(context.Background(),
		specification.ByTokenHash{TokenHash: hashToken(cred.RefreshToken)},
	)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.True(t, token.Revoked)

	// Signing out an already-cleared session is a no-op, not an error.
	assert.NoError(t, provider.SignOut(context.Background(), nil))
}

func TestSignOutRevokesOnlyPresentedToken(t *testing.T) {
	provider, factory := newProviderFixture(t)
	first, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)
	second, err := provider.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(context.Background(), first))

	uow := factory.NewUnitOfWork(context.Background())
	revoked, err := uow.UserRepository().FindRefreshToken(context.Background(),
		specification.ByTokenHash{TokenHash: hashToken(first.RefreshToken)},
	)
	require.NoError(t, err)
	require.NotNil(t, revoked)
	assert.True(t, revoked.Revoked)

	// The other device's session survives a single-session sign-out.
	alive, err := uow.UserRepository().FindRefreshToken(context.Background(),
		specification.ByTokenHash{TokenHash: hashToken(second.RefreshToken)},
	)
	require.NoError(t, err)
	require.NotNil(t, alive)
	assert.False(t, alive.Revoked)
}

func TestSignOutWithoutRefreshTokenRevokesAllSessions(t *testing.T) {
	provider, factory := newProviderFixture(t)
	first, err := provider.SignUp(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)
	second, err := provider.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	bare := *first
	bare.RefreshToken = ""
	require.NoError(t, provider.SignOut(context.Background(), &bare))

	uow := factory.NewUnitOfWork(context.Background())
	for _, raw := range []string{first.RefreshToken, second.RefreshToken} {
		token, err := uow.UserRepository().FindRefreshToken(context.Background(),
			specification.ByTokenHash{TokenHash: hashToken(raw)},
		)
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.True(t, token.Revoked)
	}
}
