package apperr

import "fmt"

// AuthError covers identity-provider failures: invalid credentials,
// duplicate sign-up, provider unreachable.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(reason string, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// CreateChatError wraps chat-creation failures (transport or authorization).
type CreateChatError struct {
	Err error
}

func (e *CreateChatError) Error() string {
	return fmt.Sprintf("create chat: %v", e.Err)
}

func (e *CreateChatError) Unwrap() error { return e.Err }

// SendPhase identifies which step of the two-phase send protocol failed.
type SendPhase string

const (
	PhasePersist SendPhase = "persist"
	PhaseTrigger SendPhase = "trigger"
)

// SendError reports a failed outgoing-message submission. Phase persist means
// nothing was stored and the caller should retain the typed text; phase
// trigger means the user message IS stored but the responder was not notified.
type SendError struct {
	Phase SendPhase
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send (%s phase): %v", e.Phase, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// SubscriptionError reports a live subscription that could not be established
// or was denied. Transient drops are handled by the transport, not surfaced here.
type SubscriptionError struct {
	Topic string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Topic, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
