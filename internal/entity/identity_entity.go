package entity

import "github.com/google/uuid"

// Identity is the acting authenticated user. Owned by the session store,
// read-only to every other component.
type Identity struct {
	UserId uuid.UUID
	Email  string
}
