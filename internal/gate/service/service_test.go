package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/internal/gate/store/drivers/sqlite"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/idx"
)

const testPepper = "test-pepper-test-pepper-test-pepper"

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestHasher(t *testing.T) *cryptox.Hasher {
	t.Helper()

	h, err := cryptox.NewHasher(testPepper)
	require.NoError(t, err)
	return h
}

func seedMember(t *testing.T, st store.Store, tier, status string) domain.Member {
	t.Helper()

	m := domain.Member{
		ID:          idx.New().String(),
		EmailDigest: idx.New().String(), // unique placeholder digest
		Name:        "Test Member",
		Tier:        tier,
		Status:      status,
	}
	require.NoError(t, st.Members().CreateMember(context.Background(), m))
	return m
}

func seedKey(t *testing.T, st store.Store, h *cryptox.Hasher, memberID, raw string, expiresAt *time.Time) domain.AccessKey {
	t.Helper()

	digest, err := h.HashKey(raw)
	require.NoError(t, err)

	k := domain.AccessKey{
		ID:        idx.New().String(),
		Digest:    digest,
		Suffix:    raw[len(raw)-4:],
		MemberID:  memberID,
		Status:    domain.KeyStatusActive,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, st.Keys().CreateKey(context.Background(), k))
	return k
}
