package integration

import (
	"context"
	"testing"
	"time"

	"chatbot-be/internal/directory"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/gate"
	"chatbot-be/internal/identity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/repository/memory"
	"chatbot-be/internal/responder"
	"chatbot-be/internal/send"
	"chatbot-be/internal/session"
	"chatbot-be/internal/stream"

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

// echoResponder stands in for the external bot service: every trigger writes
// a reply back through the bot writer, the way the real callback would.
type echoResponder struct {
	writer *send.BotWriter
}

func (r *echoResponder) Trigger(ctx context.Context, chatID uuid.UUID, message string) (responder.Result, error) {
	if _, err := r.writer.Write(ctx, chatID, "Echo: "+message); err != nil {
		return responder.Result{}, err
	}
	return responder.Result{Success: true, Message: "Message processed"}, nil
}

// Full client journey on the in-memory stack: sign up, route through the
// gate, create a chat, watch it in the directory, send a message, and see
// both the user message and the bot reply arrive on the live stream.
func TestChatFlow(t *testing.T) {
	factory := memory.NewRepositoryFactory()
	notifier := notify.NewNotifier(nil, nopLogger{})
	t.Cleanup(func() { notifier.Close() })

	provider := identity.NewJWTProvider(factory, "integration-secret", time.Hour, 24*time.Hour)
	store := session.NewStore(provider, nopLogger{}, nil)
	dir := directory.New(factory, notifier, nopLogger{})
	streamer := stream.NewStreamer(factory, notifier, nopLogger{})
	writer := send.NewBotWriter(factory, notifier, nopLogger{})
	coordinator := send.NewCoordinator(factory, notifier, &echoResponder{writer: writer}, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Before authentication the chat surface is out of reach.
	assert.Equal(t, gate.RedirectSignIn, gate.Decide(store.Snapshot(), gate.DestChat))

	require.NoError(t, store.SignUp(ctx, "traveler@example.com", "secret123"))
	require.True(t, store.IsAuthenticated())
	assert.Equal(t, gate.Proceed, gate.Decide(store.Snapshot(), gate.DestChat))
	assert.Equal(t, gate.RedirectHome, gate.Decide(store.Snapshot(), gate.DestSignIn))

	userID := store.Identity().UserId

	chats, err := dir.List(ctx, userID)
	require.NoError(t, err)
	waitFor(t, "empty directory", func() bool {
		select {
		case snap := <-chats:
			return len(snap) == 0
		default:
			return false
		}
	})

	chat, err := dir.Create(ctx, userID, "Trip planning")
	require.NoError(t, err)

	var listed []entity.Chat
	waitFor(t, "created chat in directory", func() bool {
		select {
		case snap := <-chats:
			listed = snap
			return len(snap) == 1
		default:
			return false
		}
	})
	assert.Equal(t, "Trip planning", listed[0].Title)

	switcher := stream.NewSwitcher(streamer)
	defer switcher.Close()
	messages, err := switcher.Switch(ctx, &chat.Id)
	require.NoError(t, err)

	msg, result, err := coordinator.Send(ctx, userID, chat.Id, "Hello")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, msg.IsBot)

	var conversation []entity.Message
	waitFor(t, "user message and bot reply", func() bool {
		select {
		case snap := <-messages:
			conversation = snap
			return len(snap) == 2
		default:
			return false
		}
	})
	assert.Equal(t, "Hello", conversation[0].Content)
	assert.False(t, conversation[0].IsBot)
	assert.Equal(t, "Echo: Hello", conversation[1].Content)
	assert.True(t, conversation[1].IsBot)

	// Sign-out flips routing back and surfaces no identity.
	require.NoError(t, store.SignOut(ctx))
	assert.Nil(t, store.Identity())
	assert.Equal(t, gate.RedirectSignIn, gate.Decide(store.Snapshot(), gate.DestChat))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
