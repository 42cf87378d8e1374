// Package session manages the admin bearer-token session that gates the
// admin console operations.
package session

import "time"

// Session is the stored admin credential state.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsActive reports whether the session is usable at the given instant.
func (s *Session) IsActive(now time.Time) bool {
	if s == nil || s.Token == "" || s.Token == placeholderToken {
		return false
	}
	return now.Before(s.ExpiresAt)
}
