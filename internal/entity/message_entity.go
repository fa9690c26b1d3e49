package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is one immutable utterance within a chat. IsBot marks
// responder-authored messages.
type Message struct {
	Id        uuid.UUID
	ChatId    uuid.UUID
	UserId    uuid.UUID
	Content   string
	IsBot     bool
	CreatedAt time.Time
}

// Less orders messages by CreatedAt ascending with Id as a deterministic
// tie-break for equal timestamps.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Id.String() < other.Id.String()
}
