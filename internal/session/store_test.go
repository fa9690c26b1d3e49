package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/identity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeProvider scripts the identity provider so transitions can be driven
// deterministically.
type fakeProvider struct {
	cred       *identity.Credentials
	signInErr  error
	signOutErr error

	signOutCalls int
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*identity.Credentials, error) {
	return f.SignIn(ctx, email, password)
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Credentials, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.cred, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, cred *identity.Credentials) error {
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeProvider) Introspect(accessToken string) (*entity.Identity, time.Time, error) {
	if f.signInErr != nil {
		return nil, time.Time{}, f.signInErr
	}
	ident := f.cred.Identity
	return &ident, f.cred.ExpiresAt, nil
}

func validCredentials() *identity.Credentials {
	return &identity.Credentials{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Identity:     entity.Identity{UserId: uuid.New(), Email: "user@example.com"},
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestStoreStartsUnauthenticated(t *testing.T) {
	store := NewStore(&fakeProvider{}, nopLogger{}, nil)

	snap := store.Snapshot()
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.False(t, snap.IsAuthenticated())
	assert.False(t, snap.IsLoading())
	assert.Nil(t, store.Identity())
}

func TestSignInSuccess(t *testing.T) {
	cred := validCredentials()
	store := NewStore(&fakeProvider{cred: cred}, nopLogger{}, nil)

	err := store.SignIn(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, PhaseAuthenticated, snap.Phase)
	assert.True(t, snap.IsAuthenticated())
	require.NotNil(t, store.Identity())
	assert.Equal(t, cred.Identity.UserId, store.Identity().UserId)
	assert.Equal(t, "access-token", store.AccessToken())
}

func TestSignInFailureReturnsToUnauthenticated(t *testing.T) {
	provider := &fakeProvider{signInErr: errors.New("invalid credentials")}
	store := NewStore(provider, nopLogger{}, nil)

	err := store.SignIn(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.Nil(t, store.Identity())
	assert.Empty(t, store.AccessToken())
}

func TestResumeRestoresSession(t *testing.T) {
	cred := validCredentials()
	store := NewStore(&fakeProvider{cred: cred}, nopLogger{}, nil)

	err := store.Resume(context.Background(), "access-token")
	require.NoError(t, err)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, cred.Identity.Email, store.Identity().Email)
}

func TestResumeWithBadTokenStaysSignedOut(t *testing.T) {
	store := NewStore(&fakeProvider{signInErr: errors.New("token expired")}, nopLogger{}, nil)

	err := store.Resume(context.Background(), "stale-token")
	require.Error(t, err)
	assert.Equal(t, PhaseUnauthenticated, store.Snapshot().Phase)
}

func TestSignOutClearsStateEvenWhenRemoteRevocationFails(t *testing.T) {
	cred := validCredentials()
	provider := &fakeProvider{cred: cred, signOutErr: errors.New("network down")}
	store := NewStore(provider, nopLogger{}, nil)

	require.NoError(t, store.SignIn(context.Background(), "user@example.com", "secret"))
	require.True(t, store.IsAuthenticated())

	err := store.SignOut(context.Background())
	require.Error(t, err)

	// The remote failure is reported, but locally nothing of the old
	// session may survive.
	snap := store.Snapshot()
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.Nil(t, store.Identity())
	assert.Empty(t, store.AccessToken())
	assert.Equal(t, 1, provider.signOutCalls)
}

func TestSignOutRunsHooksWithOutgoingIdentity(t *testing.T) {
	cred := validCredentials()
	store := NewStore(&fakeProvider{cred: cred}, nopLogger{}, nil)
	require.NoError(t, store.SignIn(context.Background(), "user@example.com", "secret"))

	var hookIdentity *entity.Identity
	store.OnSignOut(func(ident entity.Identity) {
		hookIdentity = &ident
		// The prior identity must still be the one being torn down.
		assert.Equal(t, cred.Identity.UserId, ident.UserId)
	})

	require.NoError(t, store.SignOut(context.Background()))
	require.NotNil(t, hookIdentity)
}

func TestWatchDeliversCurrentThenTransitions(t *testing.T) {
	cred := validCredentials()
	store := NewStore(&fakeProvider{cred: cred}, nopLogger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps := store.Watch(ctx)

	// First delivery is the current state, before any transition.
	first := <-snaps
	assert.Equal(t, PhaseUnauthenticated, first.Phase)

	require.NoError(t, store.SignIn(context.Background(), "user@example.com", "secret"))

	// Conflated watchers settle on the latest snapshot.
	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-snaps:
			if snap.Phase == PhaseAuthenticated {
				return
			}
		case <-deadline:
			t.Fatal("never observed the authenticated snapshot")
		}
	}
}

func TestWatchChannelClosesOnCancel(t *testing.T) {
	store := NewStore(&fakeProvider{cred: validCredentials()}, nopLogger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	snaps := store.Watch(ctx)
	<-snaps
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-snaps:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel never closed after cancel")
		}
	}
}

func TestAuthenticateWhilePendingIsANoop(t *testing.T) {
	cred := validCredentials()
	store := NewStore(&fakeProvider{cred: cred}, nopLogger{}, nil)

	// Put the store into the pending phase directly; racing two real
	// sign-ins would make the test order-dependent.
	store.mu.Lock()
	store.setState(Snapshot{Phase: PhasePending}, nil)
	store.mu.Unlock()

	err := store.SignIn(context.Background(), "user@example.com", "secret")
	assert.NoError(t, err)
	assert.Equal(t, PhasePending, store.Snapshot().Phase)
}

func TestExpiredSnapshotIsNotAuthenticated(t *testing.T) {
	snap := Snapshot{
		Phase:     PhaseAuthenticated,
		Identity:  &entity.Identity{UserId: uuid.New()},
		ExpiresAt: time.Now().Add(-time.Second),
	}
	assert.False(t, snap.IsAuthenticated())
}
