package sqlite

import (
	"context"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

type membersRepo struct {
	db dbtx
}

const memberColumns = `id, email_digest, name, tier, status, created_at, updated_at`

func (r *membersRepo) GetMemberByID(ctx context.Context, id string) (domain.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

func (r *membersRepo) GetMemberByEmailDigest(ctx context.Context, digest string) (domain.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email_digest = ?`, digest)
	return scanMember(row)
}

func (r *membersRepo) CreateMember(ctx context.Context, m domain.Member) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, email_digest, name, tier, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.EmailDigest, m.Name, m.Tier, m.Status, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *membersRepo) UpdateMemberStatus(ctx context.Context, memberID string, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE members SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), memberID)
	return err
}

func (r *membersRepo) UpdateMemberTier(ctx context.Context, memberID string, tier string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE members SET tier = ?, updated_at = ? WHERE id = ?`,
		tier, time.Now().UTC(), memberID)
	return err
}

func (r *membersRepo) ListMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.EmailDigest, &m.Name, &m.Tier, &m.Status,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.EmailDigest, &m.Name, &m.Tier, &m.Status,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Member{}, mapNotFound(err)
	}
	return m, nil
}
