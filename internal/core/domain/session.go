package domain

import "time"

type Session struct {
	SessionID    string    `json:"sessionId"`
	UserCode     string    `json:"userCode"`
	UserType     UserType  `json:"userType"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	// RefreshHash fingerprints the refresh token currently bound to the
	// session; rotating the token invalidates older ones.
	RefreshHash string `json:"refreshHash,omitempty"`
}

// Expired reports whether the session is past its absolute expiry or has
// been idle longer than idle.
func (s Session) Expired(now time.Time, idle time.Duration) bool {
	if s.SessionID == "" {
		return true
	}
	if now.After(s.ExpiresAt) {
		return true
	}
	return idle > 0 && now.Sub(s.LastActivity) > idle
}

// Deadline is the earlier of the absolute expiry and the idle deadline.
func (s Session) Deadline(idle time.Duration) time.Time {
	if idle <= 0 {
		return s.ExpiresAt
	}
	idleAt := s.LastActivity.Add(idle)
	if idleAt.Before(s.ExpiresAt) {
		return idleAt
	}
	return s.ExpiresAt
}

func (s Session) Actor() Actor {
	return Actor{UserCode: s.UserCode, UserType: s.UserType, Username: s.Username, SessionID: s.SessionID}
}

// AuthResult is handed to a client after login or refresh.
type AuthResult struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
	SessionID    string    `json:"sessionId"`
}
