package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
)

func TestRevokeSession(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &RevokeService{Store: st}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusActive)
	session := seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())

	revoked, err := svc.RevokeSession(context.Background(), session.ID, "admin request")
	require.NoError(t, err)
	require.True(t, revoked)

	t.Run("idempotent on absent session", func(t *testing.T) {
		revoked, err := svc.RevokeSession(context.Background(), session.ID, "again")
		require.NoError(t, err)
		require.False(t, revoked)
	})
}

func TestRevokeKey(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	h := newTestHasher(t)
	svc := &RevokeService{Store: st}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusActive)
	key := seedKey(t, st, h, member.ID, "revocable-key-000001", nil)

	revoked, err := svc.RevokeKey(context.Background(), key.Digest, "compromised")
	require.NoError(t, err)
	require.True(t, revoked)

	stored, err := st.Keys().GetKeyByDigest(context.Background(), key.Digest)
	require.NoError(t, err)
	require.Equal(t, domain.KeyStatusRevoked, stored.Status)

	t.Run("idempotent on terminal key", func(t *testing.T) {
		revoked, err := svc.RevokeKey(context.Background(), key.Digest, "again")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("idempotent on unknown digest", func(t *testing.T) {
		revoked, err := svc.RevokeKey(context.Background(), "no-such-digest", "whatever")
		require.NoError(t, err)
		require.False(t, revoked)
	})
}

func TestRevokeMemberSessions(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &RevokeService{Store: st}

	member := seedMember(t, st, "inner-circle", domain.MemberStatusActive)
	other := seedMember(t, st, "inner-circle", domain.MemberStatusActive)

	seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())
	seedSession(t, st, member.ID, "", time.Now().Add(time.Hour), time.Now())
	kept := seedSession(t, st, other.ID, "", time.Now().Add(time.Hour), time.Now())

	n, err := svc.RevokeMemberSessions(context.Background(), member.ID, "suspension")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// Other members' sessions survive.
	_, err = st.Sessions().GetSessionByID(context.Background(), kept.ID)
	require.NoError(t, err)

	t.Run("idempotent when nothing remains", func(t *testing.T) {
		n, err := svc.RevokeMemberSessions(context.Background(), member.ID, "again")
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
