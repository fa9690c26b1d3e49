package responder

import (
	"context"

	"github.com/google/uuid"
)

// Result is the responder action's informational payload. Its semantic
// effect, if any, is an eventual bot-authored message arriving through the
// message stream, never this return value.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Responder is the external automated system that may react to a user
// message. Fire-and-forget beyond error reporting.
type Responder interface {
	Trigger(ctx context.Context, chatID uuid.UUID, message string) (Result, error)
}
