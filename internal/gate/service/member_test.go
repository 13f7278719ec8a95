package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
)

func newMemberService(t *testing.T) *MemberService {
	t.Helper()
	return &MemberService{
		Store:  newTestStore(t),
		Hasher: newTestHasher(t),
	}
}

func TestRegisterIssuesKey(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)

	issued, err := svc.Register(context.Background(), "member@example.com", "A Member", "premium")
	require.NoError(t, err)
	require.NotEmpty(t, issued.MemberID)
	require.Len(t, issued.Raw, cryptox.AccessKeyLength)
	require.Equal(t, issued.Raw[len(issued.Raw)-4:], issued.Suffix)
	require.Nil(t, issued.ExpiresAt)

	t.Run("stores digest not the raw key", func(t *testing.T) {
		digest, err := svc.Hasher.HashKey(issued.Raw)
		require.NoError(t, err)
		key, err := svc.Store.Keys().GetKeyByDigest(context.Background(), digest)
		require.NoError(t, err)
		require.Equal(t, domain.KeyStatusActive, key.Status)
		require.NotEqual(t, issued.Raw, key.Digest)
	})

	t.Run("normalises legacy tier labels", func(t *testing.T) {
		member, err := svc.Store.Members().GetMemberByID(context.Background(), issued.MemberID)
		require.NoError(t, err)
		require.Equal(t, "inner-circle-plus", member.Tier)
	})
}

func TestRegisterReusesExistingMember(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)

	first, err := svc.Register(context.Background(), "repeat@example.com", "Repeat", "basic")
	require.NoError(t, err)

	// Same email, case and whitespace insensitive, upgraded tier.
	second, err := svc.Register(context.Background(), "  Repeat@Example.com ", "Repeat", "inner-circle-elite")
	require.NoError(t, err)
	require.Equal(t, first.MemberID, second.MemberID)
	require.NotEqual(t, first.Raw, second.Raw)

	member, err := svc.Store.Members().GetMemberByID(context.Background(), first.MemberID)
	require.NoError(t, err)
	require.Equal(t, "inner-circle-elite", member.Tier)
}

func TestRegisterKeyTTL(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)
	svc.KeyTTL = 72 * time.Hour

	issued, err := svc.Register(context.Background(), "ttl@example.com", "TTL", "basic")
	require.NoError(t, err)
	require.NotNil(t, issued.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(72*time.Hour), *issued.ExpiresAt, time.Minute)
}

func TestRegisterInvalidEmail(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)
	_, err := svc.Register(context.Background(), "   ", "Nobody", "basic")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSuspendRevokesSessions(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)

	issued, err := svc.Register(context.Background(), "suspend@example.com", "S", "basic")
	require.NoError(t, err)
	session := seedSession(t, svc.Store, issued.MemberID, "", time.Now().Add(time.Hour), time.Now())

	require.NoError(t, svc.Suspend(context.Background(), issued.MemberID))

	member, err := svc.Store.Members().GetMemberByID(context.Background(), issued.MemberID)
	require.NoError(t, err)
	require.Equal(t, domain.MemberStatusSuspended, member.Status)

	resolver := &SessionService{Store: svc.Store}
	_, err = resolver.Resolve(context.Background(), session.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestExportKeys(t *testing.T) {
	t.Parallel()

	svc := newMemberService(t)

	first, err := svc.Register(context.Background(), "one@example.com", "One", "basic")
	require.NoError(t, err)
	second, err := svc.Register(context.Background(), "two@example.com", "Two", "inner-circle-elite")
	require.NoError(t, err)

	rows, err := svc.ExportKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Newest first.
	require.Equal(t, second.Suffix, rows[0].Suffix)
	require.Equal(t, first.Suffix, rows[1].Suffix)

	for _, row := range rows {
		require.Len(t, row.Suffix, cryptox.KeySuffixLength)
		require.Len(t, row.EmailDigestPrefix, emailDigestPrefixLength)
		require.Equal(t, domain.KeyStatusActive, row.Status)
		require.Zero(t, row.UseCount)
	}
}
