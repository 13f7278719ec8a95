package store

import (
	"context"
	"errors"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Members() Members
	Keys() Keys
	Sessions() Sessions
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step operations that must be atomic
	// (key redemption is the canonical case).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Members interface {
	// GetMemberByID returns a member by id.
	GetMemberByID(ctx context.Context, id string) (domain.Member, error)

	// GetMemberByEmailDigest looks a member up by the peppered email digest.
	GetMemberByEmailDigest(ctx context.Context, digest string) (domain.Member, error)

	// CreateMember inserts a new member (id is provided by app via ULID).
	CreateMember(ctx context.Context, m domain.Member) error

	// UpdateMemberStatus flips status and bumps updated_at.
	UpdateMemberStatus(ctx context.Context, memberID string, status string) error

	// UpdateMemberTier sets the raw tier label and bumps updated_at.
	UpdateMemberTier(ctx context.Context, memberID string, tier string) error

	// ListMembers returns all members, newest first.
	ListMembers(ctx context.Context) ([]domain.Member, error)
}

type Keys interface {
	// CreateKey stores a new access key record (digest, never the raw key).
	CreateKey(ctx context.Context, k domain.AccessKey) error

	// GetKeyByDigest returns the key by its peppered digest.
	GetKeyByDigest(ctx context.Context, digest string) (domain.AccessKey, error)

	// MarkKeyUsed conditionally consumes a key: status flips to used, the
	// use counter increments and last-used metadata is recorded, but only
	// where status is still active. Returns false when another redemption
	// won the race (zero rows updated).
	MarkKeyUsed(ctx context.Context, keyID string, usedAt time.Time, ip string) (bool, error)

	// UpdateKeyStatus transitions an active key to a terminal status.
	// Returns false when the key was absent or already terminal.
	UpdateKeyStatus(ctx context.Context, keyID string, status string) (bool, error)

	// ExpireActiveKeys flips every active key whose expiry has passed to
	// expired, returning how many were affected (housekeeping).
	ExpireActiveKeys(ctx context.Context, now time.Time) (int64, error)

	// ListKeys returns all keys, newest first (admin export).
	ListKeys(ctx context.Context) ([]domain.AccessKey, error)
}

type Sessions interface {
	// CreateSession stores a freshly minted session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns the session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// UpdateSessionActivity sets last_activity (throttled by the caller).
	UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time) error

	// DeleteSession removes a session. Returns false when it was absent.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// DeleteMemberSessions removes every session owned by a member,
	// returning how many were deleted (cascading revocation).
	DeleteMemberSessions(ctx context.Context, memberID string) (int64, error)

	// DeleteExpiredSessions removes sessions past their expiry (housekeeping).
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type AuditLogs interface {
	// CreateAuditEvent persists one audit record.
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListRecentAuditEvents returns the newest events up to limit.
	ListRecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error)

	// DeleteAuditEventsBefore prunes old events (housekeeping).
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
