package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
)

func seedSession(t *testing.T, st store.Store, memberID, payload string, expiresAt, lastActivity time.Time) domain.Session {
	t.Helper()

	id, err := cryptox.NewSessionID()
	require.NoError(t, err)

	s := domain.Session{
		ID:           id,
		MemberID:     memberID,
		Payload:      payload,
		ExpiresAt:    expiresAt,
		LastActivity: lastActivity,
	}
	require.NoError(t, st.Sessions().CreateSession(context.Background(), s))
	return s
}

func TestResolveSuccess(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &SessionService{Store: st}

	member := seedMember(t, st, "inner-circle-elite", domain.MemberStatusActive)
	session := seedSession(t, st, member.ID, `{"tier":"inner-circle-elite"}`,
		time.Now().Add(time.Hour), time.Now())

	res, err := svc.Resolve(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierCircleElite, res.Tier)
	require.Equal(t, member.ID, res.Member.ID)
	require.Equal(t, session.ID, res.Session.ID)
}

func TestResolveUnknownSession(t *testing.T) {
	t.Parallel()

	svc := &SessionService{Store: newTestStore(t)}

	_, err := svc.Resolve(context.Background(), "sess_does-not-exist")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveExpiredSessionIsDeleted(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &SessionService{Store: st}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusActive)
	session := seedSession(t, st, member.ID, "", time.Now().Add(-time.Minute), time.Now().Add(-time.Hour))

	_, err := svc.Resolve(context.Background(), session.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Deleted, not merely marked.
	_, err = st.Sessions().GetSessionByID(context.Background(), session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveInactiveMemberRevokesSession(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &SessionService{Store: st}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusSuspended)
	session := seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())

	_, err := svc.Resolve(context.Background(), session.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = st.Sessions().GetSessionByID(context.Background(), session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveTierFallsBackToMember(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &SessionService{Store: st}

	t.Run("member tier when payload empty", func(t *testing.T) {
		member := seedMember(t, st, "premium", domain.MemberStatusActive)
		session := seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())

		res, err := svc.Resolve(context.Background(), session.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TierCirclePlus, res.Tier) // premium is a legacy alias
	})

	t.Run("unknown member tier coerces to public", func(t *testing.T) {
		member := seedMember(t, st, "mystery-tier", domain.MemberStatusActive)
		session := seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())

		res, err := svc.Resolve(context.Background(), session.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TierPublic, res.Tier)
	})
}

func TestResolveActivityThrottle(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	base := time.Now()
	now := base
	svc := &SessionService{
		Store:            st,
		ActivityThrottle: time.Hour,
		Now:              func() time.Time { return now },
	}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusActive)
	session := seedSession(t, st, member.ID, "", base.Add(48*time.Hour), base)

	t.Run("recent activity skips the write", func(t *testing.T) {
		now = base.Add(10 * time.Minute)
		_, err := svc.Resolve(context.Background(), session.ID)
		require.NoError(t, err)

		stored, err := st.Sessions().GetSessionByID(context.Background(), session.ID)
		require.NoError(t, err)
		require.WithinDuration(t, base, stored.LastActivity, time.Second)
	})

	t.Run("stale activity is refreshed", func(t *testing.T) {
		now = base.Add(2 * time.Hour)
		_, err := svc.Resolve(context.Background(), session.ID)
		require.NoError(t, err)

		stored, err := st.Sessions().GetSessionByID(context.Background(), session.ID)
		require.NoError(t, err)
		require.WithinDuration(t, now, stored.LastActivity, time.Second)
	})
}
