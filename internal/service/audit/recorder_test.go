package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "session-service/internal/domain/session"
)

type memWriter struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	err     error
}

func (w *memWriter) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("insert without deadline")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, e)
	return nil
}

func TestRecorderPublish(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(w, zaptest.NewLogger(t))

	// a cancelled request context must not drop the write
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	r.Publish(ctx, domain.Event{Type: domain.EventCreated, SessionID: "s1", UserID: "u1", IPAddress: "10.0.0.1", At: at})
	r.Publish(ctx, domain.Event{Type: domain.EventCleaned, Count: 3, At: at})
	r.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.entries, 2)

	byType := map[domain.EventType]*domain.AuditEntry{}
	for _, e := range w.entries {
		assert.NotEmpty(t, e.ID)
		byType[e.EventType] = e
	}
	assert.Equal(t, "s1", byType[domain.EventCreated].SessionID)
	assert.Equal(t, "10.0.0.1", byType[domain.EventCreated].IPAddress)
	assert.Equal(t, at, byType[domain.EventCreated].CreatedAt)
	assert.Equal(t, 3, byType[domain.EventCleaned].Count)
}

func TestRecorderSwallowsErrors(t *testing.T) {
	w := &memWriter{err: errors.New("db down")}
	r := NewRecorder(w, zaptest.NewLogger(t))

	r.Publish(context.Background(), domain.Event{Type: domain.EventDestroyed, SessionID: "s1"})
	r.Close()

	assert.Empty(t, w.entries)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Publish(context.Background(), domain.Event{Type: domain.EventCreated})
	})
}
