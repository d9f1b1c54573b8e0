// internal/domain/session/entity.go
package session

import "time"

// DeviceType is derived from the user agent when a session is created.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// User is the identity snapshot captured at login. It is never re-fetched,
// so later profile changes are not reflected in existing sessions.
type User struct {
	ID            string   `json:"id"`
	Email         string   `json:"email,omitempty"`
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role,omitempty"`
	InstitutionID string   `json:"institutionId,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
}

// Record is the value stored under session:<id>.
type Record struct {
	SessionID    string     `json:"sessionId"`
	UserID       string     `json:"userId"`
	User         User       `json:"user"`
	CreatedAt    int64      `json:"createdAt"`    // epoch ms
	LastActivity int64      `json:"lastActivity"` // epoch ms, never below CreatedAt
	IPAddress    string     `json:"ipAddress,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
	DeviceInfo   string     `json:"deviceInfo,omitempty"`
	DeviceType   DeviceType `json:"deviceType,omitempty"`
	// Lifetime is the TTL in seconds re-applied on every touch.
	Lifetime int64 `json:"lifetime,omitempty"`
}

// Touch moves LastActivity forward to now. A clock that went backwards
// leaves the previous value in place.
func (r *Record) Touch(now time.Time) {
	if ms := now.UnixMilli(); ms > r.LastActivity {
		r.LastActivity = ms
	}
}

// Summary is the display projection returned by per-user listings.
type Summary struct {
	Record
	ExpiresAt int64 `json:"expiresAt,omitempty"` // epoch ms, zero when unknown
}

// View is the safe projection returned to collaborators validating a session.
type View struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	User         User   `json:"user"`
	LastActivity int64  `json:"lastActivity"`
}

func (r *Record) View() View {
	return View{
		SessionID:    r.SessionID,
		UserID:       r.UserID,
		User:         r.User,
		LastActivity: r.LastActivity,
	}
}

// ClientInfo carries request metadata recorded on a new session.
type ClientInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceInfo string
	// TTL overrides the store's default lifetime when positive.
	TTL time.Duration
}

// Stats aggregates live sessions for the admin dashboard.
type Stats struct {
	ActiveUsers      int                `json:"activeUsers"`
	ActiveSessions   int                `json:"activeSessions"`
	SessionsByDevice map[DeviceType]int `json:"sessionsByDevice"`
	GeneratedAt      int64              `json:"generatedAt"`
}

// EventType names a session lifecycle transition.
type EventType string

const (
	EventCreated       EventType = "created"
	EventDestroyed     EventType = "destroyed"
	EventExtended      EventType = "extended"
	EventUserLoggedOut EventType = "user_logged_out"
	EventCleaned       EventType = "cleaned"
)

// Event is published after a lifecycle transition has been persisted.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Count     int       `json:"count,omitempty"`
	At        time.Time `json:"at"`
}
