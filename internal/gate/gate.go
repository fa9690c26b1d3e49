package gate

import (
	"context"

	"chatbot-be/internal/session"
)

// Destination is a screen class a client can ask for.
type Destination int

const (
	DestRoot Destination = iota
	DestSignIn
	DestSignUp
	DestChat
)

func (d Destination) String() string {
	switch d {
	case DestRoot:
		return "root"
	case DestSignIn:
		return "sign_in"
	case DestSignUp:
		return "sign_up"
	case DestChat:
		return "chat"
	}
	return "unknown"
}

// RequiresAuth reports whether the destination is gated behind an
// authenticated session.
func (d Destination) RequiresAuth() bool {
	return d == DestChat
}

// isEntry reports whether the destination belongs to the signed-out entry
// screens.
func (d Destination) isEntry() bool {
	return d == DestRoot || d == DestSignIn || d == DestSignUp
}

type Decision int

const (
	// ShowLoading holds the screen while an auth operation is in flight.
	ShowLoading Decision = iota
	// RedirectSignIn sends an unauthenticated session to the sign-in screen.
	RedirectSignIn
	// RedirectHome sends an authenticated session away from entry screens.
	RedirectHome
	// Proceed renders the requested destination.
	Proceed
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "show_loading"
	case RedirectSignIn:
		return "redirect_sign_in"
	case RedirectHome:
		return "redirect_home"
	case Proceed:
		return "proceed"
	}
	return "unknown"
}

// Decide maps the current session snapshot and a requested destination to
// exactly one decision. Pure: never errors, no side effects. While the
// session is loading, authentication must not be trusted for routing, so
// loading always wins.
func Decide(snap session.Snapshot, dest Destination) Decision {
	if snap.IsLoading() {
		return ShowLoading
	}
	if snap.IsAuthenticated() {
		if dest.isEntry() {
			return RedirectHome
		}
		return Proceed
	}
	if dest.RequiresAuth() || dest == DestRoot {
		return RedirectSignIn
	}
	return Proceed
}

// Watch re-evaluates the decision for dest on every session transition and
// delivers each result until ctx is cancelled. The session can flip at any
// time (expiry, remote sign-out); routing reacts within one propagation step.
func Watch(ctx context.Context, store *session.Store, dest Destination) <-chan Decision {
	out := make(chan Decision, 1)
	snaps := store.Watch(ctx)
	go func() {
		defer close(out)
		for snap := range snaps {
			decision := Decide(snap, dest)
			select {
			case out <- decision:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- decision:
				default:
				}
			}
		}
	}()
	return out
}
