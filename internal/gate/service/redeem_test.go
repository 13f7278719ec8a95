package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
)

func newRedeemService(t *testing.T) (*RedeemService, *cryptox.Hasher) {
	t.Helper()

	h := newTestHasher(t)
	return &RedeemService{
		Store:  newTestStore(t),
		Hasher: h,
	}, h
}

func TestRedeemSuccess(t *testing.T) {
	t.Parallel()

	svc, h := newRedeemService(t)
	member := seedMember(t, svc.Store, "inner-circle-plus", domain.MemberStatusActive)
	seedKey(t, svc.Store, h, member.ID, "raw-key-value-0001", nil)

	res, err := svc.Redeem(context.Background(), "raw-key-value-0001", RequestContext{
		IP:        "203.0.113.7",
		UserAgent: "curl",
		Source:    "unlock-form",
	})
	require.NoError(t, err)
	require.Equal(t, member.ID, res.MemberID)
	require.Equal(t, domain.TierCirclePlus, res.Tier)
	require.True(t, strings.HasPrefix(res.SessionID, cryptox.SessionIDPrefix))
	require.True(t, res.ExpiresAt.After(time.Now()))

	t.Run("key is consumed", func(t *testing.T) {
		digest, err := h.HashKey("raw-key-value-0001")
		require.NoError(t, err)
		key, err := svc.Store.Keys().GetKeyByDigest(context.Background(), digest)
		require.NoError(t, err)
		require.Equal(t, domain.KeyStatusUsed, key.Status)
		require.Equal(t, 1, key.UseCount)
		require.Equal(t, "203.0.113.7", key.LastUsedIP)
		require.NotNil(t, key.LastUsedAt)
	})

	t.Run("session carries the redemption tier", func(t *testing.T) {
		session, err := svc.Store.Sessions().GetSessionByID(context.Background(), res.SessionID)
		require.NoError(t, err)
		require.Equal(t, member.ID, session.MemberID)
		tier, ok := session.TierFromPayload()
		require.True(t, ok)
		require.Equal(t, domain.TierCirclePlus, tier)
	})
}

func TestRedeemInvalidKey(t *testing.T) {
	t.Parallel()

	svc, _ := newRedeemService(t)

	t.Run("empty key", func(t *testing.T) {
		_, err := svc.Redeem(context.Background(), "   ", RequestContext{})
		require.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.Redeem(context.Background(), "never-issued", RequestContext{})
		require.ErrorIs(t, err, ErrInvalidKey)
	})

	// Both failure modes must carry the identical external message.
	t.Run("indistinguishable reasons", func(t *testing.T) {
		require.Equal(t, Reason(ErrInvalidKey), "Invalid key")
	})
}

func TestRedeemMissingHasherFailsClosed(t *testing.T) {
	t.Parallel()

	svc := &RedeemService{Store: newTestStore(t)}
	_, err := svc.Redeem(context.Background(), "some-key", RequestContext{})
	require.ErrorIs(t, err, ErrServerNotConfigured)
	require.Equal(t, "Server not configured", Reason(err))
}

func TestRedeemTerminalStatuses(t *testing.T) {
	t.Parallel()

	svc, h := newRedeemService(t)
	member := seedMember(t, svc.Store, "inner-circle", domain.MemberStatusActive)

	t.Run("revoked", func(t *testing.T) {
		key := seedKey(t, svc.Store, h, member.ID, "revoked-key-00000001", nil)
		ok, err := svc.Store.Keys().UpdateKeyStatus(context.Background(), key.ID, domain.KeyStatusRevoked)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = svc.Redeem(context.Background(), "revoked-key-00000001", RequestContext{})
		require.ErrorIs(t, err, ErrKeyRevoked)
	})

	t.Run("used", func(t *testing.T) {
		key := seedKey(t, svc.Store, h, member.ID, "used-key-000000000001", nil)
		won, err := svc.Store.Keys().MarkKeyUsed(context.Background(), key.ID, time.Now(), "")
		require.NoError(t, err)
		require.True(t, won)

		_, err = svc.Redeem(context.Background(), "used-key-000000000001", RequestContext{})
		require.ErrorIs(t, err, ErrKeyAlreadyUsed)
	})
}

func TestRedeemExpiredKeyFlipsStatus(t *testing.T) {
	t.Parallel()

	svc, h := newRedeemService(t)
	member := seedMember(t, svc.Store, "inner-circle", domain.MemberStatusActive)

	past := time.Now().Add(-time.Hour)
	key := seedKey(t, svc.Store, h, member.ID, "expired-key-00000001", &past)

	_, err := svc.Redeem(context.Background(), "expired-key-00000001", RequestContext{})
	require.ErrorIs(t, err, ErrKeyExpired)

	// The expiry is recorded on the key itself so the next attempt
	// short-circuits at the status gate.
	digest, err := h.HashKey("expired-key-00000001")
	require.NoError(t, err)
	stored, err := svc.Store.Keys().GetKeyByDigest(context.Background(), digest)
	require.NoError(t, err)
	require.Equal(t, domain.KeyStatusExpired, stored.Status)
	_ = key
}

func TestRedeemInactiveMember(t *testing.T) {
	t.Parallel()

	svc, h := newRedeemService(t)
	member := seedMember(t, svc.Store, "inner-circle", domain.MemberStatusSuspended)
	seedKey(t, svc.Store, h, member.ID, "suspended-member-key", nil)

	_, err := svc.Redeem(context.Background(), "suspended-member-key", RequestContext{})
	require.ErrorIs(t, err, ErrMembershipInactive)
	require.Equal(t, "Membership inactive or suspended", Reason(err))
}

func TestRedeemExactlyOneWinner(t *testing.T) {
	t.Parallel()

	svc, h := newRedeemService(t)
	member := seedMember(t, svc.Store, "inner-circle", domain.MemberStatusActive)
	key := seedKey(t, svc.Store, h, member.ID, "contested-key-000001", nil)

	first, err := svc.Redeem(context.Background(), "contested-key-000001", RequestContext{})
	require.NoError(t, err)
	require.NotEmpty(t, first.SessionID)

	_, err = svc.Redeem(context.Background(), "contested-key-000001", RequestContext{})
	require.ErrorIs(t, err, ErrKeyAlreadyUsed)

	t.Run("conditional update races to one winner", func(t *testing.T) {
		// The guard is the UPDATE ... WHERE status = active itself, so a
		// second mark on an already-used key reports no rows regardless of
		// what the caller read beforehand.
		won, err := svc.Store.Keys().MarkKeyUsed(context.Background(), key.ID, time.Now(), "")
		require.NoError(t, err)
		require.False(t, won)
	})

	t.Run("use count reflects the single redemption", func(t *testing.T) {
		digest, err := h.HashKey("contested-key-000001")
		require.NoError(t, err)
		stored, err := svc.Store.Keys().GetKeyByDigest(context.Background(), digest)
		require.NoError(t, err)
		require.Equal(t, 1, stored.UseCount)
	})
}
