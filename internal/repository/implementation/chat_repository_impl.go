package implementation

import (
	"context"
	"errors"
	"time"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/mapper"
	"chatbot-be/internal/model"
	"chatbot-be/internal/repository/contract"
	"chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatRepository(db *gorm.DB) contract.ChatRepository {
	return &ChatRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatRepositoryImpl) Create(ctx context.Context, chat *entity.Chat) error {
	m := r.mapper.ChatToModel(chat)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*chat = *r.mapper.ChatToEntity(m)
	return nil
}

// Touch advances updated_at. Called whenever a message is appended so the
// directory ordering (most recently active first) stays correct.
func (r *ChatRepositoryImpl) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *ChatRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error) {
	var m model.Chat
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatToEntity(&m), nil
}

func (r *ChatRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error) {
	var models []*model.Chat
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Chat, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatToEntity(m)
	}
	return entities, nil
}

func (r *ChatRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Chat{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
