package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatId    uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	IsBot     bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
