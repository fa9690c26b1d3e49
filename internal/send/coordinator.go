package send

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"
	"chatbot-be/internal/responder"

	"github.com/google/uuid"
)

var (
	// ErrSendInFlight rejects a second submission while one is in flight on
	// the same coordinator.
	ErrSendInFlight = errors.New("a send is already in flight")

	// ErrEmptyMessage rejects a body that is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrChatNotFound rejects a send into a chat the acting identity cannot
	// see. Indistinguishable from an authorization failure on purpose.
	ErrChatNotFound = errors.New("chat not found")
)

// Coordinator executes the two-phase outgoing-message protocol for one input
// instance: persist the user message, then trigger the responder. At most one
// send is in flight at a time; sends on other coordinators (other chats,
// other inputs) are independent.
type Coordinator struct {
	uowFactory unitofwork.RepositoryFactory
	notifier   *notify.Notifier
	responder  responder.Responder
	logger     logger.ILogger

	inFlight atomic.Bool
}

func NewCoordinator(
	uowFactory unitofwork.RepositoryFactory,
	notifier *notify.Notifier,
	resp responder.Responder,
	log logger.ILogger,
) *Coordinator {
	return &Coordinator{
		uowFactory: uowFactory,
		notifier:   notifier,
		responder:  resp,
		logger:     log,
	}
}

// InFlight reports whether a submission is currently being processed. The
// presentation layer disables the submit affordance while true.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Send runs the protocol for a message authored by userID in chatID.
//
// Phase 1 persists the message and fails closed: on any failure nothing is
// stored, the returned *apperr.SendError has PhasePersist, and the caller
// keeps the typed text for retry. Phase 2 triggers the responder only after
// phase 1 success; its failure (PhaseTrigger) does NOT roll the message back,
// so callers must report it as "saved, but the bot may not respond". The bot
// reply itself arrives later through the message stream.
func (c *Coordinator) Send(ctx context.Context, userID, chatID uuid.UUID, body string) (*entity.Message, responder.Result, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, responder.Result{}, &apperr.SendError{Phase: apperr.PhasePersist, Err: ErrEmptyMessage}
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, responder.Result{}, ErrSendInFlight
	}
	defer c.inFlight.Store(false)

	msg, err := c.persist(ctx, userID, chatID, trimmed)
	if err != nil {
		c.logger.Warn("SendCoordinator", "Persist phase failed", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return nil, responder.Result{}, &apperr.SendError{Phase: apperr.PhasePersist, Err: err}
	}

	c.notifier.MessagesChanged(chatID)
	c.notifier.ChatsChanged(userID)

	result, err := c.responder.Trigger(ctx, chatID, trimmed)
	if err != nil {
		c.logger.Warn("SendCoordinator", "Trigger phase failed, user message kept", map[string]interface{}{
			"chat_id":    chatID,
			"message_id": msg.Id,
			"error":      err.Error(),
		})
		return msg, responder.Result{}, &apperr.SendError{Phase: apperr.PhaseTrigger, Err: err}
	}

	return msg, result, nil
}

// persist writes the user message and advances the chat's updated_at in one
// transaction, after confirming the chat is visible to the acting identity.
func (c *Coordinator) persist(ctx context.Context, userID, chatID uuid.UUID, content string) (*entity.Message, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	chat, err := uow.ChatRepository().FindOne(ctx,
		specification.ByID{ID: chatID},
		specification.OwnedBy{UserID: userID},
	)
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
		UserId:  userID,
		Content: content,
		IsBot:   false,
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
	return msg, nil
}
