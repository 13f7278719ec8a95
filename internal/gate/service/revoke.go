package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abraham-of-london/circlegate/internal/gate/audit"
	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

// RevokeService removes sessions and flips keys to terminal statuses. Every
// operation is idempotent: revoking an absent or already-terminal entity
// reports false without error.
type RevokeService struct {
	Store store.Store
	Audit *audit.Logger
}

// RevokeSession deletes a session. Returns false when it did not exist.
func (s *RevokeService) RevokeSession(ctx context.Context, sessionID, reason string) (bool, error) {
	log := slogx.FromContext(ctx)

	deleted, err := s.Store.Sessions().DeleteSession(ctx, sessionID)
	if err != nil {
		log.Error("session revocation failed", slog.Any("error", err))
		return false, err
	}
	if deleted && s.Audit != nil {
		s.Audit.LogSecurityEvent("session_revoked", "", true, "", "", map[string]string{
			"reason": reason,
		})
	}
	return deleted, nil
}

// RevokeKey flips a key to revoked by its digest. Returns false when the key
// was absent or already terminal.
func (s *RevokeService) RevokeKey(ctx context.Context, digest, reason string) (bool, error) {
	log := slogx.FromContext(ctx)

	key, err := s.Store.Keys().GetKeyByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		log.Error("key lookup failed during revocation", slog.Any("error", err))
		return false, err
	}

	revoked, err := s.Store.Keys().UpdateKeyStatus(ctx, key.ID, domain.KeyStatusRevoked)
	if err != nil {
		log.Error("key revocation failed", slog.String("key_id", key.ID), slog.Any("error", err))
		return false, err
	}
	if revoked && s.Audit != nil {
		s.Audit.LogSecurityEvent("key_revoked", key.MemberID, true, "", "", map[string]string{
			"key_suffix": key.Suffix,
			"reason":     reason,
		})
	}
	return revoked, nil
}

// RevokeMemberSessions removes every session owned by a member, for use when
// a membership is suspended. Returns how many sessions were deleted.
func (s *RevokeService) RevokeMemberSessions(ctx context.Context, memberID, reason string) (int64, error) {
	log := slogx.FromContext(ctx)

	n, err := s.Store.Sessions().DeleteMemberSessions(ctx, memberID)
	if err != nil {
		log.Error("member session revocation failed",
			slog.String("member_id", memberID),
			slog.Any("error", err),
		)
		return 0, err
	}
	if n > 0 && s.Audit != nil {
		s.Audit.LogSecurityEvent("member_sessions_revoked", memberID, true, "", "", map[string]string{
			"reason": reason,
		})
	}
	return n, nil
}
