package domain

import "time"

// Audit event categories.
const (
	AuditCategoryAuth     = "auth"
	AuditCategorySecurity = "security"
	AuditCategoryAdmin    = "admin"
)

// AuditEvent is one structured audit record. Metadata is free-form and must
// never contain raw credentials.
type AuditEvent struct {
	ID        string
	Category  string
	Event     string
	Actor     string
	Success   bool
	IP        string
	UserAgent string
	Metadata  map[string]string
	CreatedAt time.Time
}
