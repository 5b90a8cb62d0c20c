package models

import "time"

// Session is a server-side login session referenced by the signed cookie.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
