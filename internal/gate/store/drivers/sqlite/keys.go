package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

type keysRepo struct {
	db dbtx
}

const keyColumns = `id, digest, suffix, member_id, status, expires_at,
	use_count, last_used_at, last_used_ip, created_at, updated_at`

func (r *keysRepo) CreateKey(ctx context.Context, k domain.AccessKey) error {
	now := time.Now().UTC()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	if k.UpdatedAt.IsZero() {
		k.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_keys
		   (id, digest, suffix, member_id, status, expires_at,
		    use_count, last_used_at, last_used_ip, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Digest, k.Suffix, k.MemberID, k.Status, mapOptionalTime(k.ExpiresAt),
		k.UseCount, mapOptionalTime(k.LastUsedAt), mapStringNull(k.LastUsedIP),
		k.CreatedAt, k.UpdatedAt)
	return err
}

func (r *keysRepo) GetKeyByDigest(ctx context.Context, digest string) (domain.AccessKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE digest = ?`, digest)
	return scanKey(row)
}

// MarkKeyUsed is the conditional half of redemption. The WHERE status guard
// makes concurrent redemptions of the same key race to exactly one winner.
func (r *keysRepo) MarkKeyUsed(ctx context.Context, keyID string, usedAt time.Time, ip string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_keys
		 SET status = ?, use_count = use_count + 1,
		     last_used_at = ?, last_used_ip = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.KeyStatusUsed, usedAt.UTC(), mapStringNull(ip), usedAt.UTC(),
		keyID, domain.KeyStatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *keysRepo) UpdateKeyStatus(ctx context.Context, keyID string, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_keys SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), keyID, domain.KeyStatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *keysRepo) ExpireActiveKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_keys SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		domain.KeyStatusExpired, now.UTC(), domain.KeyStatusActive, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *keysRepo) ListKeys(ctx context.Context) ([]domain.AccessKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM access_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccessKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanKey(row rowScanner) (domain.AccessKey, error) {
	var (
		k          domain.AccessKey
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
		lastUsedIP sql.NullString
	)
	err := row.Scan(&k.ID, &k.Digest, &k.Suffix, &k.MemberID, &k.Status, &expiresAt,
		&k.UseCount, &lastUsedAt, &lastUsedIP, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return domain.AccessKey{}, mapNotFound(err)
	}
	k.ExpiresAt = mapNullTimePtr(expiresAt)
	k.LastUsedAt = mapNullTimePtr(lastUsedAt)
	k.LastUsedIP = mapNullString(lastUsedIP)
	return k, nil
}
