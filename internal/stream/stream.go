package stream

import (
	"context"
	"sort"
	"sync"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// Streamer presents, for one chat at a time, the live ordered deduplicated
// sequence of its messages. Emitted snapshots are always complete: ordering
// is applied here regardless of the transport's arrival order.
type Streamer struct {
	uowFactory unitofwork.RepositoryFactory
	notifier   *notify.Notifier
	logger     logger.ILogger
}

func NewStreamer(uowFactory unitofwork.RepositoryFactory, notifier *notify.Notifier, log logger.ILogger) *Streamer {
	return &Streamer{
		uowFactory: uowFactory,
		notifier:   notifier,
		logger:     log,
	}
}

// Normalize sorts messages by created_at ascending with id as tie-break and
// drops duplicate ids, keeping the first occurrence after ordering.
func Normalize(messages []entity.Message) []entity.Message {
	sorted := make([]entity.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})

	out := sorted[:0]
	seen := make(map[uuid.UUID]struct{}, len(sorted))
	for _, m := range sorted {
		if _, dup := seen[m.Id]; dup {
			continue
		}
		seen[m.Id] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Snapshot returns the current ordered deduplicated message set for chatID.
func (s *Streamer) Snapshot(ctx context.Context, chatID uuid.UUID) ([]entity.Message, error) {
	return s.query(ctx, chatID)
}

func (s *Streamer) query(ctx context.Context, chatID uuid.UUID) ([]entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatID},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Message, len(messages))
	for i, m := range messages {
		out[i] = *m
	}
	return Normalize(out), nil
}

// Subscribe delivers the full ordered snapshot of chatID's messages now and
// after every change, until ctx is cancelled. A nil chatID means no active
// subscription: the returned stream is empty and already closed, not an
// error. An empty chat is a valid steady state and emits an empty snapshot.
func (s *Streamer) Subscribe(ctx context.Context, chatID *uuid.UUID) (<-chan []entity.Message, error) {
	if chatID == nil {
		empty := make(chan []entity.Message)
		close(empty)
		return empty, nil
	}
	id := *chatID

	ticks, err := s.notifier.Subscribe(ctx, notify.MessagesTopic(id))
	if err != nil {
		return nil, err
	}

	out := make(chan []entity.Message, 1)
	go func() {
		defer close(out)
		emit := func() {
			messages, err := s.query(ctx, id)
			if err != nil {
				s.logger.Warn("MessageStream", "Snapshot query failed", map[string]interface{}{
					"chat_id": id,
					"error":   err.Error(),
				})
				return
			}
			select {
			case out <- messages:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- messages:
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

// Switcher owns at most one active message subscription and enforces the
// chat-switch contract: the previous subscription is cancelled before the new
// one is established, so no message from the old chat is ever delivered on
// the stream handed out for the new one.
type Switcher struct {
	streamer *Streamer

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSwitcher(streamer *Streamer) *Switcher {
	return &Switcher{streamer: streamer}
}

// Switch replaces the active subscription with one for chatID (nil deselects:
// the previous subscription is cancelled and an empty closed stream is
// returned).
func (w *Switcher) Switch(ctx context.Context, chatID *uuid.UUID) (<-chan []entity.Message, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	if chatID == nil {
		return w.streamer.Subscribe(ctx, nil)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := w.streamer.Subscribe(subCtx, chatID)
	if err != nil {
		cancel()
		return nil, err
	}
	w.cancel = cancel
	return ch, nil
}

// Close cancels the active subscription, if any.
func (w *Switcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
