package websocket

import (
	"sync"

	"chatbot-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub tracks connected clients per user. Change fan-out happens on the
// notifier bus; the hub only owns connection bookkeeping and forced
// disconnects (e.g. sign-out revoking a user's live sessions).
type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-tab)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// CloseUser force-disconnects every connection of userID. Used when the
// identity's credentials are revoked so no subscription keeps delivering.
func (h *Hub) CloseUser(userID uuid.UUID) {
	h.mu.RLock()
	clients := append([]*Client{}, h.clients[userID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		client.Conn.Close()
	}
	if len(clients) > 0 {
		h.logger.Info("Hub", "Closed all connections for user", map[string]interface{}{
			"user_id": userID,
			"count":   len(clients),
		})
	}
}
