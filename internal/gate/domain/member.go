package domain

import "time"

const (
	MemberStatusActive    = "active"
	MemberStatusSuspended = "suspended"
)

// Member is the account a key or session ultimately authorizes. Tier holds
// the raw label as stored; normalise through ParseTier before comparing.
type Member struct {
	ID          string
	EmailDigest string
	Name        string
	Tier        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
