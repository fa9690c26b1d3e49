package contract

import (
	"context"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	Touch(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
