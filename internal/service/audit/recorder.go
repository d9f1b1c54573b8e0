// internal/service/audit/recorder.go
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
)

// writeTimeout bounds a single async insert. Close waits at most this long
// for in-flight writes.
const writeTimeout = 5 * time.Second

// Writer persists audit entries.
type Writer interface {
	Insert(ctx context.Context, e *domain.AuditEntry) error
}

// Recorder turns session lifecycle events into audit rows without blocking
// the store call that produced them. Failures are logged, never returned.
type Recorder struct {
	writer Writer
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewRecorder(writer Writer, logger *zap.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger}
}

// Publish implements session.Notifier.
func (r *Recorder) Publish(_ context.Context, evt domain.Event) {
	if r == nil || r.writer == nil {
		return
	}

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		SessionID: evt.SessionID,
		UserID:    evt.UserID,
		EventType: evt.Type,
		IPAddress: evt.IPAddress,
		Count:     evt.Count,
		CreatedAt: at.UTC(),
	}

	// request cancellation must not abort the insert
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.writer.Insert(ctx, entry); err != nil {
			r.logger.Warn("failed to record session event",
				zap.String("event_type", string(entry.EventType)),
				zap.String("session_id", entry.SessionID),
				zap.Error(err),
			)
		}
	}()
}

// Close waits for in-flight writes, giving up after writeTimeout.
func (r *Recorder) Close() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(writeTimeout):
		r.logger.Warn("audit writes still pending at shutdown")
	}
}
