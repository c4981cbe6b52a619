package entity

import "time"

// User is an authenticated operator; its ID is recorded on every history entry
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is a persisted refresh credential. Revocation lives in the store
// so every server process observes it.
type RefreshToken struct {
	ID        int64     `json:"id"`
	TokenID   string    `json:"token_id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the token can still be exchanged at the given instant
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
