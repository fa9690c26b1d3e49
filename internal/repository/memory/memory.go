package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/repository/contract"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// RepositoryFactory is an in-memory stand-in for the GORM-backed factory.
// All units of work share one store, so writes are visible across them, and
// Begin/Commit/Rollback are accepted but not transactional.
type RepositoryFactory struct {
	store *store
}

type store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]entity.User
	chats         map[uuid.UUID]entity.Chat
	messages      map[uuid.UUID]entity.Message
	refreshTokens map[uuid.UUID]entity.UserRefreshToken
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{
		store: &store{
			users:         make(map[uuid.UUID]entity.User),
			chats:         make(map[uuid.UUID]entity.Chat),
			messages:      make(map[uuid.UUID]entity.Message),
			refreshTokens: make(map[uuid.UUID]entity.UserRefreshToken),
		},
	}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: f.store}
}

type unitOfWork struct {
	store *store
}

func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) UserRepository() contract.UserRepository {
	return &userRepository{store: u.store}
}

func (u *unitOfWork) ChatRepository() contract.ChatRepository {
	return &chatRepository{store: u.store}
}

func (u *unitOfWork) MessageRepository() contract.MessageRepository {
	return &messageRepository{store: u.store}
}

// filter holds the subset of specifications the in-memory store understands.
type filter struct {
	id        *uuid.UUID
	ownerID   *uuid.UUID
	chatID    *uuid.UUID
	email     *string
	tokenHash *string
	orderBy   *specification.OrderBy
}

func buildFilter(specs []specification.Specification) filter {
	var f filter
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			id := s.ID
			f.id = &id
		case specification.OwnedBy:
			owner := s.UserID
			f.ownerID = &owner
		case specification.ByChatID:
			chat := s.ChatID
			f.chatID = &chat
		case specification.ByEmail:
			email := s.Email
			f.email = &email
		case specification.ByTokenHash:
			hash := s.TokenHash
			f.tokenHash = &hash
		case specification.OrderBy:
			order := s
			f.orderBy = &order
		}
	}
	return f
}

type userRepository struct {
	store *store
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.Id == uuid.Nil {
		user.Id = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.store.users[user.Id] = *user
	return nil
}

func (r *userRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	f := buildFilter(specs)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, user := range r.store.users {
		if f.id != nil && user.Id != *f.id {
			continue
		}
		if f.email != nil && user.Email != *f.email {
			continue
		}
		u := user
		return &u, nil
	}
	return nil, nil
}

func (r *userRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.users)), nil
}

func (r *userRepository) CreateRefreshToken(ctx context.Context, token *entity.UserRefreshToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if token.Id == uuid.Nil {
		token.Id = uuid.New()
	}
	r.store.refreshTokens[token.Id] = *token
	return nil
}

func (r *userRepository) FindRefreshToken(ctx context.Context, specs ...specification.Specification) (*entity.UserRefreshToken, error) {
	f := buildFilter(specs)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, token := range r.store.refreshTokens {
		if f.tokenHash != nil && token.TokenHash != *f.tokenHash {
			continue
		}
		if f.ownerID != nil && token.UserId != *f.ownerID {
			continue
		}
		t := token
		return &t, nil
	}
	return nil, nil
}

func (r *userRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, token := range r.store.refreshTokens {
		if token.TokenHash == tokenHash {
			token.Revoked = true
			r.store.refreshTokens[id] = token
		}
	}
	return nil
}

func (r *userRepository) RevokeAllRefreshTokens(ctx context.Context, userId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, token := range r.store.refreshTokens {
		if token.UserId == userId {
			token.Revoked = true
			r.store.refreshTokens[id] = token
		}
	}
	return nil
}

type chatRepository struct {
	store *store
}

func (r *chatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if chat.Id == uuid.Nil {
		chat.Id = uuid.New()
	}
	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = now
	}
	r.store.chats[chat.Id] = *chat
	return nil
}

func (r *chatRepository) Touch(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	chat, ok := r.store.chats[id]
	if !ok {
		return nil
	}
	chat.UpdatedAt = time.Now()
	r.store.chats[id] = chat
	return nil
}

func (r *chatRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error) {
	f := buildFilter(specs)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, chat := range r.store.chats {
		if !matchChat(chat, f) {
			continue
		}
		c := chat
		return &c, nil
	}
	return nil, nil
}

func (r *chatRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error) {
	f := buildFilter(specs)
	r.store.mu.RLock()
	var out []*entity.Chat
	for _, chat := range r.store.chats {
		if !matchChat(chat, f) {
			continue
		}
		c := chat
		out = append(out, &c)
	}
	r.store.mu.RUnlock()

	if f.orderBy != nil && f.orderBy.Field == "updated_at" {
		desc := f.orderBy.Desc
		sort.Slice(out, func(i, j int) bool {
			if desc {
				return out[i].UpdatedAt.After(out[j].UpdatedAt)
			}
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		})
	}
	return out, nil
}

func (r *chatRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	chats, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(chats)), nil
}

func matchChat(chat entity.Chat, f filter) bool {
	if f.id != nil && chat.Id != *f.id {
		return false
	}
	if f.ownerID != nil && chat.UserId != *f.ownerID {
		return false
	}
	return true
}

type messageRepository struct {
	store *store
}

func (r *messageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.store.messages[message.Id] = *message
	return nil
}

func (r *messageRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	f := buildFilter(specs)
	r.store.mu.RLock()
	var out []*entity.Message
	for _, msg := range r.store.messages {
		if f.chatID != nil && msg.ChatId != *f.chatID {
			continue
		}
		m := msg
		out = append(out, &m)
	}
	r.store.mu.RUnlock()

	if f.orderBy != nil && f.orderBy.Field == "created_at" {
		desc := f.orderBy.Desc
		sort.Slice(out, func(i, j int) bool {
			if desc {
				return out[j].Less(*out[i])
			}
			return out[i].Less(*out[j])
		})
	}
	return out, nil
}

func (r *messageRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	msgs, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(msgs)), nil
}
