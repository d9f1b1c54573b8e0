// internal/domain/session/audit.go
package session

import "time"

// AuditEntry is one persisted lifecycle event.
type AuditEntry struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"sessionId,omitempty" db:"session_id"`
	UserID    string    `json:"userId,omitempty" db:"user_id"`
	EventType EventType `json:"eventType" db:"event_type"`
	IPAddress string    `json:"ipAddress,omitempty" db:"ip_address"`
	Count     int       `json:"count,omitempty" db:"event_count"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	UserID    string
	SessionID string
	Types     []EventType
	Limit     int
}

// AuditEventsResponse lists audit entries
type AuditEventsResponse struct {
	Events []*AuditEntry `json:"events"`
	Total  int           `json:"total"`
}
