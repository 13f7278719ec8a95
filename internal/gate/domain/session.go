package domain

import (
	"encoding/json"
	"time"
)

// Session is a minted login. ID is cryptographically random and URL-safe,
// never derived from the key or the clock. Payload carries the tier resolved
// at redemption time plus redemption metadata.
type Session struct {
	ID           string
	MemberID     string
	Payload      string // JSON, see SessionPayload
	ExpiresAt    time.Time
	LastActivity time.Time
	CreatedAt    time.Time
}

// SessionPayload is the opaque blob stored with a session at creation.
type SessionPayload struct {
	Tier      string `json:"tier"`
	KeySuffix string `json:"key_suffix,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Source    string `json:"source,omitempty"`
}

// TierFromPayload returns the tier recorded at creation time, or false when
// the payload is absent or unreadable. Callers fall back to the member's raw
// tier label.
func (s Session) TierFromPayload() (Tier, bool) {
	if s.Payload == "" {
		return TierPublic, false
	}
	var p SessionPayload
	if err := json.Unmarshal([]byte(s.Payload), &p); err != nil || p.Tier == "" {
		return TierPublic, false
	}
	return ParseTier(p.Tier), true
}
