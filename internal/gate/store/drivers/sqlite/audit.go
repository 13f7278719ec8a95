package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

type auditLogsRepo struct {
	db dbtx
}

func (r *auditLogsRepo) CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events
		   (id, category, event, actor, success, ip, user_agent, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Category, e.Event, mapStringNull(e.Actor), e.Success,
		mapStringNull(e.IP), mapStringNull(e.UserAgent), metadata, e.CreatedAt)
	return err
}

func (r *auditLogsRepo) ListRecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, event, actor, success, ip, user_agent, metadata, created_at
		 FROM audit_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e        domain.AuditEvent
			actor    sql.NullString
			ip       sql.NullString
			ua       sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Event, &actor, &e.Success,
			&ip, &ua, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Actor = mapNullString(actor)
		e.IP = mapNullString(ip)
		e.UserAgent = mapNullString(ua)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditLogsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
