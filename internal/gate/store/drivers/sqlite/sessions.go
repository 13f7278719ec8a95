package sqlite

import (
	"context"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, member_id, payload, expires_at, last_activity, created_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, member_id, payload, expires_at, last_activity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.MemberID, s.Payload, s.ExpiresAt.UTC(), s.LastActivity, s.CreatedAt)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	var s domain.Session
	err := row.Scan(&s.ID, &s.MemberID, &s.Payload, &s.ExpiresAt,
		&s.LastActivity, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`, at.UTC(), sessionID)
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sessionsRepo) DeleteMemberSessions(ctx context.Context, memberID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE member_id = ?`, memberID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
