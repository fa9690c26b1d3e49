package send

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/repository/memory"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/responder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeResponder scripts the trigger phase. When block is set, Trigger parks
// until release is closed so in-flight behavior can be observed.
type fakeResponder struct {
	err     error
	block   bool
	release chan struct{}

	calls int
}

func (f *fakeResponder) Trigger(ctx context.Context, chatID uuid.UUID, message string) (responder.Result, error) {
	f.calls++
	if f.block {
		<-f.release
	}
	if f.err != nil {
		return responder.Result{}, f.err
	}
	return responder.Result{Success: true, Message: "Message processed"}, nil
}

func newCoordinatorFixture(t *testing.T, resp responder.Responder) (*Coordinator, *memory.RepositoryFactory, uuid.UUID, uuid.UUID) {
	t.Helper()
	factory := memory.NewRepositoryFactory()
	notifier := notify.NewNotifier(nil, nopLogger{})
	t.Cleanup(func() { notifier.Close() })

	userID := uuid.New()
	chatID := uuid.New()
	uow := factory.NewUnitOfWork(context.Background())
	require.NoError(t, uow.ChatRepository().Create(context.Background(), &entity.Chat{
		Id:        chatID,
		UserId:    userID,
		Title:     "Trip planning",
		UpdatedAt: time.Now().Add(-time.Hour),
	}))

	return NewCoordinator(factory, notifier, resp, nopLogger{}), factory, userID, chatID
}

func TestSendPersistsThenTriggers(t *testing.T) {
	resp := &fakeResponder{}
	coord, factory, userID, chatID := newCoordinatorFixture(t, resp)

	msg, result, err := coord.Send(context.Background(), userID, chatID, "  Hello  ")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsBot)
	assert.True(t, result.Success)
	assert.Equal(t, 1, resp.calls)

	uow := factory.NewUnitOfWork(context.Background())
	stored, err := uow.MessageRepository().FindAll(context.Background(),
		specification.ByChatID{ChatID: chatID},
	)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Hello", stored[0].Content)

	// The chat surfaces as recently active after the send.
	chat, err := uow.ChatRepository().FindOne(context.Background(), specification.ByID{ID: chatID})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), chat.UpdatedAt, time.Minute)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	resp := &fakeResponder{}
	coord, factory, userID, chatID := newCoordinatorFixture(t, resp)

	_, _, err := coord.Send(context.Background(), userID, chatID, "   \n\t ")
	var sendErr *apperr.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, apperr.PhasePersist, sendErr.Phase)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, resp.calls, "responder must not fire for a rejected body")

	uow := factory.NewUnitOfWork(context.Background())
	count, err := uow.MessageRepository().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSendIntoForeignChatFailsClosed(t *testing.T) {
	resp := &fakeResponder{}
	coord, factory, _, chatID := newCoordinatorFixture(t, resp)
	stranger := uuid.New()

	_, _, err := coord.Send(context.Background(), stranger, chatID, "Hello")
	var sendErr *apperr.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, apperr.PhasePersist, sendErr.Phase)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Zero(t, resp.calls)

	uow := factory.NewUnitOfWork(context.Background())
	count, err := uow.MessageRepository().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTriggerFailureKeepsPersistedMessage(t *testing.T) {
	resp := &fakeResponder{err: errors.New("responder unreachable")}
	coord, factory, userID, chatID := newCoordinatorFixture(t, resp)

	msg, _, err := coord.Send(context.Background(), userID, chatID, "Hello")
	var sendErr *apperr.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, apperr.PhaseTrigger, sendErr.Phase)

	// The message survived phase 1; only the bot trigger failed.
	require.NotNil(t, msg)
	uow := factory.NewUnitOfWork(context.Background())
	stored, storeErr := uow.MessageRepository().FindAll(context.Background(),
		specification.ByChatID{ChatID: chatID},
	)
	require.NoError(t, storeErr)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.Id, stored[0].Id)
}

func TestSecondSendWhileInFlightIsRejected(t *testing.T) {
	resp := &fakeResponder{block: true, release: make(chan struct{})}
	coord, _, userID, chatID := newCoordinatorFixture(t, resp)

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := coord.Send(context.Background(), userID, chatID, "first")
		firstDone <- err
	}()

	// Wait until the first send is parked inside the trigger phase.
	require.Eventually(t, coord.InFlight, time.Second, 5*time.Millisecond)

	_, _, err := coord.Send(context.Background(), userID, chatID, "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(resp.release)
	require.NoError(t, <-firstDone)
	assert.False(t, coord.InFlight())

	// With the flight slot free again, sending works.
	resp.block = false
	_, _, err = coord.Send(context.Background(), userID, chatID, "third")
	assert.NoError(t, err)
}
