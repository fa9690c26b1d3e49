package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatID struct {
	ChatID uuid.UUID
}

func (s ByChatID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatID)
}

// OwnedBy restricts rows to the acting identity.
type OwnedBy struct {
	UserID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
