package domain

import "time"

// Access key lifecycle. Transitions are monotone: active is the only
// non-terminal status and nothing ever returns to it.
const (
	KeyStatusActive  = "active"
	KeyStatusUsed    = "used"
	KeyStatusRevoked = "revoked"
	KeyStatusExpired = "expired"
)

// AccessKey is a redeemable one-time grant. The raw key is never stored;
// Digest is the peppered HMAC and Suffix the last characters kept for admin
// reference.
type AccessKey struct {
	ID         string
	Digest     string
	Suffix     string
	MemberID   string
	Status     string
	ExpiresAt  *time.Time
	UseCount   int
	LastUsedAt *time.Time
	LastUsedIP string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
