// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	wstypes "session-service/internal/domain/websocket"
)

type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	done   chan struct{}
	logger *zap.Logger
}

// BroadcastMessage targets every client when UserIDs is nil. A non-empty
// Channel requires a subscription and a non-empty SessionID narrows delivery
// to clients bound to that session.
type BroadcastMessage struct {
	UserIDs   []string
	SessionID string
	Channel   wstypes.ChannelType
	Message   *wstypes.WSMessage
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		done:            make(chan struct{}),
		logger:          logger,
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return nil // Will be handled by client's default handler
	}

	return handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Publish pushes a session lifecycle event to monitor subscribers and tells
// the affected clients to log out. It never blocks the caller.
func (h *Hub) Publish(_ context.Context, event domain.Event) {
	data := wstypes.SessionEventData{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		IPAddress: event.IPAddress,
		Count:     event.Count,
	}

	var eventType wstypes.EventType
	switch event.Type {
	case domain.EventCreated:
		eventType = wstypes.EventTypeSessionCreated
	case domain.EventDestroyed:
		eventType = wstypes.EventTypeSessionDestroyed
	case domain.EventExtended:
		eventType = wstypes.EventTypeSessionExtended
	case domain.EventUserLoggedOut:
		eventType = wstypes.EventTypeUserLoggedOut
	case domain.EventCleaned:
		eventType = wstypes.EventTypeSessionsCleaned
	default:
		return
	}

	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSessions,
		Message: wstypes.NewMessage(eventType, data),
	})

	switch event.Type {
	case domain.EventDestroyed:
		h.ForceLogout(event.UserID, event.SessionID, "session_destroyed")
	case domain.EventUserLoggedOut:
		h.ForceLogout(event.UserID, "", "user_logged_out")
	}
}

// ForceLogout tells the user's clients that their session is gone. An empty
// sessionID reaches every client of the user.
func (h *Hub) ForceLogout(userID, sessionID, reason string) {
	if userID == "" {
		return
	}
	msg := wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
		SessionID: sessionID,
		UserID:    userID,
		Reason:    reason,
		Message:   "You have been logged out",
	})
	h.enqueue(&BroadcastMessage{
		UserIDs:   []string{userID},
		SessionID: sessionID,
		Message:   msg,
	})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast buffer full, dropping message",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id":     client.userID,
		"session_id":  client.sessionID,
		"roles":       client.roles,
		"permissions": client.permissions,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("user_id", client.userID),
				zap.String("session_id", client.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(client *Client) {
		if msg.Channel != "" && !client.IsSubscribed(msg.Channel) {
			return
		}
		if msg.SessionID != "" && client.sessionID != msg.SessionID {
			return
		}
		client.SendMessage(msg.Message)
	}

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				deliver(client)
			}
		}
		return
	}

	for _, userID := range msg.UserIDs {
		for client := range h.clients[userID] {
			deliver(client)
		}
	}
}

func (h *Hub) GetConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(userID string) bool {
	return h.GetConnectedClients(userID) > 0
}

// DisconnectUser forcefully disconnects all connections of a user
func (h *Hub) DisconnectUser(userID string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}

	disconnectMsg := wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
		"reason": reason,
	})
	for client := range clients {
		client.SendMessage(disconnectMsg)
		client.Close()
	}

	delete(h.clients, userID)
	h.logger.Info("disconnected all clients for user",
		zap.String("user_id", userID),
		zap.String("reason", reason),
	)
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
