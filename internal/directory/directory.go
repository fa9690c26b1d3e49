package directory

import (
	"context"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// Directory presents the live, ordered set of chats owned by one identity.
// The live subscription is the sole source of truth: Create never merges an
// optimistic copy into a local list, it only persists and signals the change.
type Directory struct {
	uowFactory unitofwork.RepositoryFactory
	notifier   *notify.Notifier
	logger     logger.ILogger
}

func New(uowFactory unitofwork.RepositoryFactory, notifier *notify.Notifier, log logger.ILogger) *Directory {
	return &Directory{
		uowFactory: uowFactory,
		notifier:   notifier,
		logger:     log,
	}
}

// Snapshot returns the current ordered chat set for userID, most recently
// active first. List uses it for every emission; the REST surface uses it for
// point queries.
func (d *Directory) Snapshot(ctx context.Context, userID uuid.UUID) ([]entity.Chat, error) {
	return d.query(ctx, userID)
}

func (d *Directory) query(ctx context.Context, userID uuid.UUID) ([]entity.Chat, error) {
	uow := d.uowFactory.NewUnitOfWork(ctx)
	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userID},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Chat, len(chats))
	for i, c := range chats {
		out[i] = *c
	}
	return out, nil
}

// List subscribes to the identity's chat set. A fresh full snapshot, ordered
// by updated_at descending, is delivered immediately and after every change
// until ctx is cancelled. Restartable: each call re-delivers the current set.
func (d *Directory) List(ctx context.Context, userID uuid.UUID) (<-chan []entity.Chat, error) {
	ticks, err := d.notifier.Subscribe(ctx, notify.ChatsTopic(userID))
	if err != nil {
		return nil, err
	}

	out := make(chan []entity.Chat, 1)
	go func() {
		defer close(out)
		emit := func() {
			chats, err := d.query(ctx, userID)
			if err != nil {
				// Transient store failure: keep the subscription, the next
				// tick re-queries.
				d.logger.Warn("ChatDirectory", "Snapshot query failed", map[string]interface{}{
					"user_id": userID,
					"error":   err.Error(),
				})
				return
			}
			select {
			case out <- chats:
			default:
				// Consumer still holds an unread snapshot; replace it.
				select {
				case <-out:
				default:
				}
				select {
				case out <- chats:
				default:
				}
			}
		}

		emit()
		for {
			select {
			case _, ok := <-ticks:
				if !ok {
					return
				}
				emit()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Create persists a new chat for userID. The created record becomes visible
// through List's next emission; callers must not patch any cached list on
// failure.
func (d *Directory) Create(ctx context.Context, userID uuid.UUID, title string) (*entity.Chat, error) {
	uow := d.uowFactory.NewUnitOfWork(ctx)
	chat := &entity.Chat{
		Id:     uuid.New(),
		UserId: userID,
		Title:  title,
	}
	if err := uow.ChatRepository().Create(ctx, chat); err != nil {
		return nil, &apperr.CreateChatError{Err: err}
	}

	d.notifier.ChatsChanged(userID)
	d.logger.Info("ChatDirectory", "Chat created", map[string]interface{}{
		"chat_id": chat.Id,
		"user_id": userID,
	})
	return chat, nil
}
