// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	domain "session-service/internal/domain/session"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

var auditSchema = []string{
	`CREATE TABLE IF NOT EXISTS session_events (
		id          TEXT PRIMARY KEY,
		session_id  TEXT,
		user_id     TEXT,
		event_type  TEXT NOT NULL,
		ip_address  TEXT,
		event_count INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_events_user ON session_events (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events (session_id)`,
}

type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the audit table and its indexes when missing.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range auditSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create session_events: %w", err)
			}
		}
		return nil
	})
}

// Insert stores one audit entry
func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEntry) error {
	query := `
		INSERT INTO session_events (id, session_id, user_id, event_type, ip_address, event_count, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		e.ID, e.SessionID, e.UserID, string(e.EventType), e.IPAddress, e.Count, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	query, args := buildAuditQuery(filter)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		var (
			e         domain.AuditEntry
			eventType string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &eventType, &e.IPAddress, &e.Count, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		e.EventType = domain.EventType(eventType)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session events: %w", err)
	}

	return entries, nil
}

func buildAuditQuery(filter domain.AuditFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conditions = append(conditions, fmt.Sprintf("event_type = ANY($%d)", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var b strings.Builder
	b.WriteString(`SELECT id, COALESCE(session_id, ''), COALESCE(user_id, ''), event_type,
		COALESCE(ip_address, ''), event_count, created_at
		FROM session_events`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))

	return b.String(), args
}
