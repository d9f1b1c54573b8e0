package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "session-service/internal/domain/session"
	wstypes "session-service/internal/domain/websocket"
	"session-service/internal/middleware"
	ws "session-service/internal/websocket"
)

type fakeStats struct {
	stats *domain.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (*domain.Stats, error) {
	return f.stats, f.err
}

func connect(t *testing.T, source StatsSource, admin bool) *websocket.Conn {
	t.Helper()

	hub := ws.NewHub(zaptest.NewLogger(t))
	hub.RegisterHandler(NewStatsHandler(source))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		auth := &ws.ClientAuth{UserID: "u1", SessionID: "s1"}
		if admin {
			auth.Roles = []string{middleware.RoleInstitutionManager}
		}
		client := ws.NewClient(hub, conn, auth)
		hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wstypes.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wstypes.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func requestStats(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.WriteJSON(wstypes.NewMessage(wstypes.EventTypeSessionStats, nil)))
	msg := readMessage(t, conn)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	data["_type"] = string(msg.Type)
	return data
}

func TestStatsHandler(t *testing.T) {
	stats := &domain.Stats{
		ActiveUsers:      2,
		ActiveSessions:   3,
		SessionsByDevice: map[domain.DeviceType]int{domain.DeviceMobile: 1, domain.DeviceDesktop: 2},
	}

	t.Run("admin", func(t *testing.T) {
		data := requestStats(t, connect(t, fakeStats{stats: stats}, true))
		assert.Equal(t, string(wstypes.EventTypeSessionStats), data["_type"])
		assert.EqualValues(t, 3, data["activeSessions"])
		assert.EqualValues(t, 2, data["activeUsers"])
	})

	t.Run("non admin", func(t *testing.T) {
		data := requestStats(t, connect(t, fakeStats{stats: stats}, false))
		assert.Equal(t, string(wstypes.EventTypeError), data["_type"])
		assert.Equal(t, "forbidden", data["code"])
	})

	t.Run("store failure", func(t *testing.T) {
		data := requestStats(t, connect(t, fakeStats{err: errors.New("redis down")}, true))
		assert.Equal(t, string(wstypes.EventTypeError), data["_type"])
		assert.Equal(t, "stats_failed", data["code"])
	})
}
