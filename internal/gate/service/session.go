package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/audit"
	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

const defaultActivityThrottle = time.Hour

// Resolution is a successful session lookup.
type Resolution struct {
	Tier    domain.Tier
	Session domain.Session
	Member  domain.Member
}

// SessionService resolves session identifiers to tiers, applying expiry and
// membership-status rules lazily on every lookup.
type SessionService struct {
	Store store.Store
	Audit *audit.Logger

	// ActivityThrottle bounds how often last_activity is written for a
	// busy session. Default one hour.
	ActivityThrottle time.Duration

	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) throttle() time.Duration {
	if s.ActivityThrottle > 0 {
		return s.ActivityThrottle
	}
	return defaultActivityThrottle
}

// Resolve looks a session up and returns its tier and owning member. Every
// failure mode, including storage faults, collapses to ErrUnauthorized; the
// distinction lives in the logs.
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (Resolution, error) {
	log := slogx.FromContext(ctx)

	if sessionID == "" {
		return Resolution{}, ErrUnauthorized
	}

	// 1. Fetch the session. Storage faults fail closed.
	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("session lookup failed", slog.Any("error", err))
		}
		return Resolution{}, ErrUnauthorized
	}

	now := s.now()

	// 2. Expiry: delete, never just mark, before answering.
	if !now.Before(session.ExpiresAt) {
		if _, err := s.Store.Sessions().DeleteSession(ctx, sessionID); err != nil {
			log.Error("failed to delete expired session", slog.Any("error", err))
		}
		return Resolution{}, ErrUnauthorized
	}

	// 3. The owning member must still be active; a suspended member's
	// sessions are revoked lazily here.
	member, err := s.Store.Members().GetMemberByID(ctx, session.MemberID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("member lookup failed", slog.Any("error", err))
		}
		return Resolution{}, ErrUnauthorized
	}
	if member.Status != domain.MemberStatusActive {
		if _, err := s.Store.Sessions().DeleteSession(ctx, sessionID); err != nil {
			log.Error("failed to revoke session of inactive member", slog.Any("error", err))
		}
		if s.Audit != nil {
			s.Audit.LogSecurityEvent("session_revoked", member.ID, true, "", "", map[string]string{
				"reason": "member_inactive",
			})
		}
		return Resolution{}, ErrUnauthorized
	}

	// 4. Prefer the tier captured at redemption time; fall back to the
	// member's raw label. Unknown labels coerce to public either way.
	tier, ok := session.TierFromPayload()
	if !ok {
		tier = domain.ParseTier(member.Tier)
	}

	// 5. Throttled activity refresh. Skipping the write for recent activity
	// bounds write amplification on hot sessions; a failed write is not a
	// resolution failure.
	if now.Sub(session.LastActivity) > s.throttle() {
		if err := s.Store.Sessions().UpdateSessionActivity(ctx, sessionID, now); err != nil {
			log.Warn("failed to refresh session activity", slog.Any("error", err))
		} else {
			session.LastActivity = now
		}
	}

	return Resolution{Tier: tier, Session: session, Member: member}, nil
}
