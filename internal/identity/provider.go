package identity

import (
	"context"
	"time"

	"chatbot-be/internal/entity"
)

// Credentials is what a successful sign-in yields. The session store owns the
// lifecycle; other components only ever see the Identity inside.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Identity     entity.Identity
	ExpiresAt    time.Time
}

// Provider is the external identity provider contract: it issues and
// validates credentials. All failures surface as *apperr.AuthError.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Credentials, error)
	SignIn(ctx context.Context, email, password string) (*Credentials, error)
	SignOut(ctx context.Context, cred *Credentials) error

	// Introspect validates an access token and returns the identity it
	// carries plus its expiry. Used for session resumption and by the
	// delivery layer.
	Introspect(accessToken string) (*entity.Identity, time.Time, error)
}
