package send

import (
	"context"
	"strings"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// BotWriter persists responder-authored replies delivered via the callback
// endpoint. Replies reach subscribers through the same live stream as user
// messages; nothing is returned to the responder beyond success.
type BotWriter struct {
	uowFactory unitofwork.RepositoryFactory
	notifier   *notify.Notifier
	logger     logger.ILogger
}

func NewBotWriter(uowFactory unitofwork.RepositoryFactory, notifier *notify.Notifier, log logger.ILogger) *BotWriter {
	return &BotWriter{
		uowFactory: uowFactory,
		notifier:   notifier,
		logger:     log,
	}
}

func (w *BotWriter) Write(ctx context.Context, chatID uuid.UUID, content string) (*entity.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	uow := w.uowFactory.NewUnitOfWork(ctx)

	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatID})
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	msg := &entity.Message{
		Id:      uuid.New(),
		ChatId:  chatID,
		UserId:  chat.UserId,
		Content: trimmed,
		IsBot:   true,
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := uow.ChatRepository().Touch(ctx, chatID); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	w.notifier.MessagesChanged(chatID)
	w.notifier.ChatsChanged(chat.UserId)
	w.logger.Info("BotWriter", "Responder reply stored", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": msg.Id,
	})
	return msg, nil
}
