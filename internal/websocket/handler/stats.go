// internal/websocket/handler/stats.go
package handler

import (
	"context"
	"fmt"

	domain "session-service/internal/domain/session"
	wstypes "session-service/internal/domain/websocket"
	ws "session-service/internal/websocket"
)

// StatsSource provides live session counts.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// StatsHandler answers monitor requests for session counts over the socket.
type StatsHandler struct {
	stats StatsSource
}

func NewStatsHandler(stats StatsSource) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// SupportedEvents returns events this handler supports
func (h *StatsHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSessionStats}
}

// HandleMessage processes session monitor requests
func (h *StatsHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeSessionStats:
		return h.handleStats(ctx, client)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *StatsHandler) handleStats(ctx context.Context, client *ws.Client) error {
	if !client.IsAdmin() {
		client.SendError("forbidden", "Session stats require an admin role", "")
		return nil
	}

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		client.SendError("stats_failed", "Failed to read session stats", err.Error())
		return nil
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSessionStats, stats))
	return nil
}
