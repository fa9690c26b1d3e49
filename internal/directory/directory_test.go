package directory

import (
	"context"
	"testing"
	"time"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/repository/memory"

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

func newDirectoryFixture(t *testing.T) (*Directory, *memory.RepositoryFactory, *notify.Notifier) {
	t.Helper()
	factory := memory.NewRepositoryFactory()
	notifier := notify.NewNotifier(nil, nopLogger{})
	t.Cleanup(func() { notifier.Close() })
	return New(factory, notifier, nopLogger{}), factory, notifier
}

func seedChat(t *testing.T, factory *memory.RepositoryFactory, userID uuid.UUID, title string, updatedAt time.Time) uuid.UUID {
	t.Helper()
	chat := &entity.Chat{
		Id:        uuid.New(),
		UserId:    userID,
		Title:     title,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	uow := factory.NewUnitOfWork(context.Background())
	require.NoError(t, uow.ChatRepository().Create(context.Background(), chat))
	return chat.Id
}

func waitForChats(t *testing.T, ch <-chan []entity.Chat, match func([]entity.Chat) bool) []entity.Chat {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chats, ok := <-ch:
			if !ok {
				t.Fatal("directory stream closed before the expected snapshot")
			}
			if match(chats) {
				return chats
			}
		case <-deadline:
			t.Fatal("timed out waiting for chat snapshot")
		}
	}
}

func TestSnapshotOrdersByRecentActivity(t *testing.T) {
	dir, factory, _ := newDirectoryFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	seedChat(t, factory, userID, "Oldest", base)
	seedChat(t, factory, userID, "Newest", base.Add(30*time.Minute))
	seedChat(t, factory, userID, "Middle", base.Add(10*time.Minute))

	chats, err := dir.Snapshot(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "Newest", chats[0].Title)
	assert.Equal(t, "Middle", chats[1].Title)
	assert.Equal(t, "Oldest", chats[2].Title)
}

func TestSnapshotIsScopedToOwner(t *testing.T) {
	dir, factory, _ := newDirectoryFixture(t)
	alice := uuid.New()
	bob := uuid.New()
	seedChat(t, factory, alice, "Alice chat", time.Now())
	seedChat(t, factory, bob, "Bob chat", time.Now())

	chats, err := dir.Snapshot(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Alice chat", chats[0].Title)
}

func TestListDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	dir, factory, _ := newDirectoryFixture(t)
	userID := uuid.New()
	seedChat(t, factory, userID, "Existing", time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := dir.List(ctx, userID)
	require.NoError(t, err)

	initial := waitForChats(t, ch, func(c []entity.Chat) bool { return len(c) == 1 })
	assert.Equal(t, "Existing", initial[0].Title)

	// Creating through the directory signals the change itself.
	_, err = dir.Create(ctx, userID, "Trip planning")
	require.NoError(t, err)

	updated := waitForChats(t, ch, func(c []entity.Chat) bool { return len(c) == 2 })
	assert.Equal(t, "Trip planning", updated[0].Title, "new chat is the most recently active")
}

func TestCreatePersistsChat(t *testing.T) {
	dir, _, _ := newDirectoryFixture(t)
	userID := uuid.New()

	chat, err := dir.Create(context.Background(), userID, "Groceries")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, chat.Id)
	assert.Equal(t, "Groceries", chat.Title)

	chats, err := dir.Snapshot(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.Id, chats[0].Id)
}
