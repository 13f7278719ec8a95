package audit

import (
	"context"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
)

// StoreSink persists audit events to the audit_events table.
type StoreSink struct {
	Store store.Store
}

func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{Store: s}
}

func (s *StoreSink) Emit(ctx context.Context, event domain.AuditEvent) error {
	return s.Store.AuditLogs().CreateAuditEvent(ctx, event)
}
