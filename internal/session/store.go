package session

import (
	"context"
	"sync"
	"time"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/identity"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/pkg/events"
	pktNats "chatbot-be/pkg/nats"
)

type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhasePending         Phase = "pending"
	PhaseAuthenticated   Phase = "authenticated"
)

// Snapshot is an immutable view of the session at one point in time.
// Consumers always observe the store through snapshots, never by caching a
// field across a blocking call.
type Snapshot struct {
	Phase     Phase
	Identity  *entity.Identity
	ExpiresAt time.Time
}

func (s Snapshot) IsLoading() bool {
	return s.Phase == PhasePending
}

// IsAuthenticated is true iff an identity is present and its credentials have
// not expired.
func (s Snapshot) IsAuthenticated() bool {
	if s.Phase != PhaseAuthenticated || s.Identity == nil {
		return false
	}
	return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
}

// Store is the single source of truth for the acting identity. It is the only
// writer of session state; every other component reads it via Snapshot or
// Watch. Lifecycle is process-wide: built once at start, torn down at exit.
type Store struct {
	provider       identity.Provider
	logger         logger.ILogger
	eventPublisher *pktNats.Publisher

	mu          sync.Mutex
	snap        Snapshot
	cred        *identity.Credentials
	watchers    map[int]chan Snapshot
	nextWatcher int
	onSignOut   []func(entity.Identity)
}

func NewStore(provider identity.Provider, log logger.ILogger, eventPublisher *pktNats.Publisher) *Store {
	return &Store{
		provider:       provider,
		logger:         log,
		eventPublisher: eventPublisher,
		snap:           Snapshot{Phase: PhaseUnauthenticated},
		watchers:       make(map[int]chan Snapshot),
	}
}

// OnSignOut registers a teardown hook that runs, with the outgoing identity,
// before the unauthenticated snapshot becomes observable. Live subscriptions
// register here so sign-out stops their delivery atomically from the
// consumer's point of view.
func (s *Store) OnSignOut(fn func(entity.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Store) IsLoading() bool { return s.Snapshot().IsLoading() }

func (s *Store) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated() }

// Identity returns the acting identity, or nil when signed out.
func (s *Store) Identity() *entity.Identity {
	snap := s.Snapshot()
	if !snap.IsAuthenticated() {
		return nil
	}
	return snap.Identity
}

// Watch delivers the current snapshot immediately and every transition after
// it, until ctx is cancelled. Slow watchers are conflated to the latest
// snapshot rather than blocking the store.
func (s *Store) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.snap
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// setState replaces the snapshot and fans it out to watchers. Must be called
// with s.mu held.
func (s *Store) setState(snap Snapshot, cred *identity.Credentials) {
	s.snap = snap
	s.cred = cred
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			// Watcher has an unread snapshot; replace it with the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) SignUp(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, email, password, s.provider.SignUp, "USER_SIGNED_UP")
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, email, password, s.provider.SignIn, "USER_SIGNED_IN")
}

type authFn func(ctx context.Context, email, password string) (*identity.Credentials, error)

func (s *Store) authenticate(ctx context.Context, email, password string, fn authFn, eventType string) error {
	s.mu.Lock()
	if s.snap.Phase == PhasePending {
		s.mu.Unlock()
		return nil // an auth operation is already in flight; observe the state
	}
	s.setState(Snapshot{Phase: PhasePending}, s.cred)
	s.mu.Unlock()

	cred, err := fn(ctx, email, password)

	s.mu.Lock()
	if err != nil {
		s.setState(Snapshot{Phase: PhaseUnauthenticated}, nil)
		s.mu.Unlock()
		s.logger.Warn("SessionStore", "Authentication failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return err
	}
	ident := cred.Identity
	s.setState(Snapshot{
		Phase:     PhaseAuthenticated,
		Identity:  &ident,
		ExpiresAt: cred.ExpiresAt,
	}, cred)
	s.mu.Unlock()

	s.logger.Info("SessionStore", "Authenticated", map[string]interface{}{
		"user_id": ident.UserId,
	})
	s.publishEvent(ctx, eventType, ident)
	return nil
}

// Resume restores an authenticated session from an existing access token.
// Used by the delivery layer when a client reconnects with valid credentials.
func (s *Store) Resume(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	s.setState(Snapshot{Phase: PhasePending}, s.cred)
	s.mu.Unlock()

	ident, expiresAt, err := s.provider.Introspect(accessToken)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setState(Snapshot{Phase: PhaseUnauthenticated}, nil)
		return err
	}
	s.setState(Snapshot{
		Phase:     PhaseAuthenticated,
		Identity:  ident,
		ExpiresAt: expiresAt,
	}, &identity.Credentials{AccessToken: accessToken, Identity: *ident, ExpiresAt: expiresAt})
	return nil
}

// SignOut clears local authenticated state unconditionally. A failed remote
// revoke is reported to the caller, but never leaves the prior identity
// visible locally.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	cred := s.cred
	prior := s.snap.Identity
	hooks := append([]func(entity.Identity){}, s.onSignOut...)
	s.setState(Snapshot{Phase: PhasePending}, cred)
	s.mu.Unlock()

	// Stop live subscriptions for the outgoing identity before the state
	// flips, so no consumer sees stale data delivered for a session that is
	// about to disappear.
	if prior != nil {
		for _, fn := range hooks {
			fn(*prior)
		}
	}

	remoteErr := s.provider.SignOut(ctx, cred)

	s.mu.Lock()
	s.setState(Snapshot{Phase: PhaseUnauthenticated}, nil)
	s.mu.Unlock()

	if prior != nil {
		s.publishEvent(ctx, "USER_SIGNED_OUT", *prior)
	}
	if remoteErr != nil {
		s.logger.Warn("SessionStore", "Remote sign-out failed, local session cleared anyway", map[string]interface{}{
			"error": remoteErr.Error(),
		})
		return remoteErr
	}
	return nil
}

// AccessToken exposes the raw credential for the delivery layer. Empty when
// signed out.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.AccessToken
}

func (s *Store) publishEvent(ctx context.Context, eventType string, ident entity.Identity) {
	if s.eventPublisher == nil {
		return
	}
	event := events.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"user_id": ident.UserId,
			"email":   ident.Email,
			"time":    time.Now().Format(time.RFC822),
		},
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("SessionStore", "Failed to publish event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
