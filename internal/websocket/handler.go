package websocket

import (
	"context"
	"encoding/json"

	"chatbot-be/internal/directory"
	"chatbot-be/internal/dto"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/gate"
	"chatbot-be/internal/identity"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/session"
	"chatbot-be/internal/stream"

	"github.com/gofiber/websocket/v2"
	pktNats "chatbot-be/pkg/nats"
)

// Handler upgrades connections and drives the live protocol: a per-connection
// session bound from the access token, the chat list pushed on every change,
// and at most one message stream selected at a time.
type Handler struct {
	hub       *Hub
	provider  identity.Provider
	directory *directory.Directory
	streamer  *stream.Streamer
	events    *pktNats.Publisher
	logger    logger.ILogger
}

func NewHandler(hub *Hub, provider identity.Provider, dir *directory.Directory, streamer *stream.Streamer, events *pktNats.Publisher, log logger.ILogger) *Handler {
	return &Handler{
		hub:       hub,
		provider:  provider,
		directory: dir,
		streamer:  streamer,
		events:    events,
		logger:    log,
	}
}

// Frame is an outbound server frame. Message frames carry the chat they
// belong to so a late frame from a previous selection can be told apart.
type Frame struct {
	Type     string                `json:"type"` // "session" | "chats" | "messages" | "error"
	Decision string                `json:"decision,omitempty"`
	ChatId   string                `json:"chat_id,omitempty"`
	Chats    []dto.ChatResponse    `json:"chats,omitempty"`
	Messages []dto.MessageResponse `json:"messages,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// ServeWs handles a live connection. The access token comes in the `token`
// query param because browsers cannot set headers on websocket upgrades.
func (h *Handler) ServeWs(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := session.NewStore(h.provider, h.logger, h.events)
	if err := store.Resume(ctx, conn.Query("token")); err != nil {
		h.logger.Warn("WebSocket", "Resume failed", map[string]interface{}{"error": err.Error()})
	}

	// The live surface is a gated destination: only an authenticated,
	// settled session may proceed.
	if decision := gate.Decide(store.Snapshot(), gate.DestChat); decision != gate.Proceed {
		h.writeFrame(conn, Frame{Type: "session", Decision: decision.String()})
		conn.Close()
		return
	}

	ident := store.Identity()
	client := &Client{
		Hub:      h.hub,
		Conn:     conn,
		UserID:   ident.UserId,
		Send:     make(chan []byte, 64),
		Commands: make(chan Command, 8),
		done:     ctx.Done(),
	}
	h.hub.register <- client

	// Sign-out from any surface tears this connection down.
	store.OnSignOut(func(entity.Identity) { cancel() })

	// Closing the socket is what unblocks readPump; do it whenever the
	// connection context ends, whatever ended it.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go client.writePump()
	go h.run(ctx, cancel, store, client)

	// readPump blocks until the connection drops; it must run on the
	// fiber handler goroutine.
	client.readPump()
	cancel()
}

func (h *Handler) run(ctx context.Context, cancel context.CancelFunc, store *session.Store, client *Client) {
	defer cancel()

	h.send(client, Frame{Type: "session", Decision: gate.Proceed.String()})

	chats, err := h.directory.List(ctx, client.UserID)
	if err != nil {
		h.send(client, Frame{Type: "error", Error: "chat list unavailable"})
		return
	}

	switcher := stream.NewSwitcher(h.streamer)
	defer switcher.Close()

	var (
		messages <-chan []entity.Message
		selected *string
	)

	for {
		select {
		case <-ctx.Done():
			return

		case list, ok := <-chats:
			if !ok {
				return
			}
			h.send(client, Frame{Type: "chats", Chats: dto.ChatsToResponse(list)})

		case set, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if selected == nil {
				continue
			}
			h.send(client, Frame{
				Type:     "messages",
				ChatId:   *selected,
				Messages: dto.MessagesToResponse(set),
			})

		case cmd, ok := <-client.Commands:
			if !ok {
				return
			}
			switch cmd.Type {
			case "subscribe":
				if cmd.ChatId == nil {
					h.send(client, Frame{Type: "error", Error: "subscribe requires chat_id"})
					continue
				}
				ch, err := switcher.Switch(ctx, cmd.ChatId)
				if err != nil {
					h.send(client, Frame{Type: "error", Error: "message stream unavailable"})
					continue
				}
				id := cmd.ChatId.String()
				selected = &id
				messages = ch

			case "unsubscribe":
				ch, err := switcher.Switch(ctx, nil)
				if err == nil {
					messages = ch
				}
				selected = nil

			case "sign_out":
				if err := store.SignOut(ctx); err != nil {
					h.logger.Warn("WebSocket", "Remote revocation failed", map[string]interface{}{
						"user_id": client.UserID,
						"error":   err.Error(),
					})
				}
				return

			default:
				h.send(client, Frame{Type: "error", Error: "unknown command"})
			}
		}
	}
}

func (h *Handler) send(client *Client, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("WebSocket", "Dropping frame, client too slow", map[string]interface{}{
			"user_id": client.UserID,
			"type":    frame.Type,
		})
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}
