package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/audit"
	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// RequestContext carries the caller metadata forwarded into sessions and
// audit events.
type RequestContext struct {
	IP        string
	UserAgent string
	Source    string
}

// Redemption is the successful outcome of a key redemption.
type Redemption struct {
	SessionID string
	MemberID  string
	Tier      domain.Tier
	ExpiresAt time.Time
}

// RedeemService converts a one-time access key into a session.
type RedeemService struct {
	Store      store.Store
	Hasher     *cryptox.Hasher
	Audit      *audit.Logger
	SessionTTL time.Duration

	// Now is injectable for deterministic expiry tests.
	Now func() time.Time
}

func (s *RedeemService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RedeemService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return defaultSessionTTL
}

// Redeem validates a raw access key and, on success, atomically consumes the
// key and mints a session. Concurrent redemptions of the same key produce
// exactly one winner; the rest observe the key as already used.
func (s *RedeemService) Redeem(ctx context.Context, rawKey string, reqCtx RequestContext) (Redemption, error) {
	log := slogx.FromContext(ctx)

	// 1. Compute the lookup digest. A hashing configuration failure must
	// fail closed with a generic message; an empty key is indistinguishable
	// from a miss.
	if s.Hasher == nil {
		log.Error("key redemption attempted without a configured hasher")
		return Redemption{}, ErrServerNotConfigured
	}
	digest, err := s.Hasher.HashKey(rawKey)
	if err != nil {
		s.auditFailure(reqCtx, "", "empty_key")
		return Redemption{}, ErrInvalidKey
	}

	// 2. Look up the key by digest. A miss uses the same external message
	// as an empty key.
	key, err := s.Store.Keys().GetKeyByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.auditFailure(reqCtx, "", "unknown_key")
			return Redemption{}, ErrInvalidKey
		}
		log.Error("key lookup failed", slog.Any("error", err))
		return Redemption{}, ErrInvalidKey
	}

	// 3. Status gate. Terminal statuses map to specific reasons.
	switch key.Status {
	case domain.KeyStatusActive:
	case domain.KeyStatusRevoked:
		s.auditFailure(reqCtx, key.MemberID, "key_revoked")
		return Redemption{}, ErrKeyRevoked
	case domain.KeyStatusUsed:
		s.auditFailure(reqCtx, key.MemberID, "key_already_used")
		return Redemption{}, ErrKeyAlreadyUsed
	default:
		s.auditFailure(reqCtx, key.MemberID, "key_expired")
		return Redemption{}, ErrKeyExpired
	}

	now := s.now()

	// 4. Expiry gate. A passed expiry flips the key to expired as a side
	// effect so later attempts short-circuit at step 3.
	if key.ExpiresAt != nil && !now.Before(*key.ExpiresAt) {
		if _, err := s.Store.Keys().UpdateKeyStatus(ctx, key.ID, domain.KeyStatusExpired); err != nil {
			log.Error("failed to expire key", slog.String("key_id", key.ID), slog.Any("error", err))
		}
		s.auditFailure(reqCtx, key.MemberID, "key_expired")
		return Redemption{}, ErrKeyExpired
	}

	// 5. The owning member must exist and be active.
	member, err := s.Store.Members().GetMemberByID(ctx, key.MemberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.auditFailure(reqCtx, key.MemberID, "member_missing")
			return Redemption{}, ErrMembershipInactive
		}
		log.Error("member lookup failed", slog.Any("error", err))
		return Redemption{}, ErrMembershipInactive
	}
	if member.Status != domain.MemberStatusActive {
		s.auditFailure(reqCtx, member.ID, "member_inactive")
		return Redemption{}, ErrMembershipInactive
	}

	// 6. Resolve the tier and mint the session identifier.
	tier := domain.ParseTier(member.Tier)

	sessionID, err := cryptox.NewSessionID()
	if err != nil {
		log.Error("session id generation failed", slog.Any("error", err))
		return Redemption{}, ErrServerNotConfigured
	}

	payload, err := json.Marshal(domain.SessionPayload{
		Tier:      tier.String(),
		KeySuffix: key.Suffix,
		IP:        reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
		Source:    reqCtx.Source,
	})
	if err != nil {
		return Redemption{}, err
	}

	session := domain.Session{
		ID:           sessionID,
		MemberID:     member.ID,
		Payload:      string(payload),
		ExpiresAt:    now.Add(s.sessionTTL()),
		LastActivity: now,
		CreatedAt:    now,
	}

	// 7. Consume the key and create the session in one transaction. The
	// conditional update is the race arbiter: zero rows means another
	// redemption won and this one must observe "already used". Partial
	// redemption (key consumed, no session) is structurally impossible.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		won, err := tx.Keys().MarkKeyUsed(ctx, key.ID, now, reqCtx.IP)
		if err != nil {
			return err
		}
		if !won {
			return ErrKeyAlreadyUsed
		}
		return tx.Sessions().CreateSession(ctx, session)
	})
	if err != nil {
		if errors.Is(err, ErrKeyAlreadyUsed) {
			s.auditFailure(reqCtx, member.ID, "key_already_used")
			return Redemption{}, ErrKeyAlreadyUsed
		}
		log.Error("redemption transaction failed",
			slog.String("key_id", key.ID),
			slog.Any("error", err),
		)
		return Redemption{}, ErrInvalidKey
	}

	// 8. Audit after commit, best effort. An audit failure never rolls a
	// redemption back.
	if s.Audit != nil {
		s.Audit.LogAuthEvent("key_redeemed", member.ID, true, reqCtx.IP, reqCtx.UserAgent, map[string]string{
			"key_suffix": key.Suffix,
			"tier":       tier.String(),
			"source":     reqCtx.Source,
		})
	}

	log.Info("access key redeemed",
		slog.String("member_id", member.ID),
		slog.String("tier", tier.String()),
	)

	return Redemption{
		SessionID: sessionID,
		MemberID:  member.ID,
		Tier:      tier,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *RedeemService) auditFailure(reqCtx RequestContext, actor, reason string) {
	if s.Audit == nil {
		return
	}
	s.Audit.LogSecurityEvent("key_redemption_rejected", actor, false, reqCtx.IP, reqCtx.UserAgent, map[string]string{
		"reason": reason,
		"source": reqCtx.Source,
	})
}
