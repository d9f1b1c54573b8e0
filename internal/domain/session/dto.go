// internal/domain/session/dto.go
package session

// ValidateRequest for POST /sessions
type ValidateRequest struct {
	SessionID string `json:"sessionId"`
}

// ValidateResponse confirms a live session
type ValidateResponse struct {
	Valid   bool `json:"valid"`
	Session View `json:"session"`
}

// ExtendRequest for PUT /sessions. ExtendBy is in seconds; zero means the
// default session lifetime.
type ExtendRequest struct {
	SessionID string `json:"sessionId"`
	ExtendBy  int64  `json:"extendBy"`
}

// CountsResponse is the aggregate returned when no user filter is given
type CountsResponse struct {
	ActiveUsers    int `json:"activeUsers"`
	ActiveSessions int `json:"activeSessions"`
}

// UserSessionsResponse lists one user's sessions
type UserSessionsResponse struct {
	UserID   string    `json:"userId"`
	Sessions []Summary `json:"sessions"`
	Total    int       `json:"total"`
}

// ActiveUsersResponse lists the active-user registry
type ActiveUsersResponse struct {
	Users []string `json:"users"`
	Total int      `json:"total"`
}

// CreateSessionRequest is sent by the login collaborator after it has
// authenticated the user
type CreateSessionRequest struct {
	User       User   `json:"user"`
	DeviceInfo string `json:"deviceInfo"`
	Remember   bool   `json:"remember"`
}

// TokenResponse is returned on session creation and refresh
type TokenResponse struct {
	SessionID    string `json:"sessionId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// RefreshRequest exchanges a refresh token for a new access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}
