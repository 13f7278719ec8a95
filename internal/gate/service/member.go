package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/audit"
	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/idx"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

const emailDigestPrefixLength = 12

var ErrInvalidEmail = errors.New("invalid email")

// IssuedKey is returned from registration. Raw is handed out exactly once;
// only the digest and suffix are persisted.
type IssuedKey struct {
	MemberID  string
	Raw       string
	Suffix    string
	ExpiresAt *time.Time
}

// KeyExportRow is a privacy-safe admin view of one issued key. No raw
// credentials and no full digests leave the service.
type KeyExportRow struct {
	CreatedAt         time.Time
	Status            string
	Suffix            string
	EmailDigestPrefix string
	Tier              string
	UseCount          int
}

// MemberService registers members and issues their access keys.
type MemberService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Audit  *audit.Logger

	// KeyTTL bounds issued keys. Zero means keys do not expire.
	KeyTTL time.Duration

	Now func() time.Time
}

func (s *MemberService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates a member for the given email (or reuses the existing one)
// and issues a fresh access key. The raw key is returned exactly once.
func (s *MemberService) Register(ctx context.Context, email, name, tier string) (IssuedKey, error) {
	log := slogx.FromContext(ctx)

	if s.Hasher == nil {
		log.Error("member registration attempted without a configured hasher")
		return IssuedKey{}, ErrServerNotConfigured
	}

	emailDigest, err := s.Hasher.HashEmail(email)
	if err != nil {
		return IssuedKey{}, ErrInvalidEmail
	}

	now := s.now()
	tierLabel := domain.ParseTier(tier).String()

	// Reuse the member when the email digest is already known; refresh the
	// tier so upgrades take effect on the next session.
	member, err := s.Store.Members().GetMemberByEmailDigest(ctx, emailDigest)
	switch {
	case err == nil:
		if member.Tier != tierLabel {
			if err := s.Store.Members().UpdateMemberTier(ctx, member.ID, tierLabel); err != nil {
				log.Error("failed to update member tier", slog.Any("error", err))
				return IssuedKey{}, err
			}
		}
	case errors.Is(err, store.ErrNotFound):
		member = domain.Member{
			ID:          idx.New().String(),
			EmailDigest: emailDigest,
			Name:        name,
			Tier:        tierLabel,
			Status:      domain.MemberStatusActive,
		}
		if err := s.Store.Members().CreateMember(ctx, member); err != nil {
			log.Error("failed to create member", slog.Any("error", err))
			return IssuedKey{}, err
		}
	default:
		log.Error("member lookup failed", slog.Any("error", err))
		return IssuedKey{}, err
	}

	rawKey, err := cryptox.NewAccessKey()
	if err != nil {
		log.Error("access key generation failed", slog.Any("error", err))
		return IssuedKey{}, err
	}
	digest, err := s.Hasher.HashKey(rawKey.Raw)
	if err != nil {
		return IssuedKey{}, err
	}

	var expiresAt *time.Time
	if s.KeyTTL > 0 {
		t := now.Add(s.KeyTTL)
		expiresAt = &t
	}

	key := domain.AccessKey{
		ID:        idx.New().String(),
		Digest:    digest,
		Suffix:    rawKey.Suffix,
		MemberID:  member.ID,
		Status:    domain.KeyStatusActive,
		ExpiresAt: expiresAt,
	}
	if err := s.Store.Keys().CreateKey(ctx, key); err != nil {
		log.Error("failed to store access key", slog.Any("error", err))
		return IssuedKey{}, err
	}

	if s.Audit != nil {
		s.Audit.LogAdminEvent("access_key_issued", member.ID, true, "", "", map[string]string{
			"key_suffix": rawKey.Suffix,
			"tier":       tierLabel,
		})
	}

	log.Info("access key issued",
		slog.String("member_id", member.ID),
		slog.String("tier", tierLabel),
	)

	return IssuedKey{
		MemberID:  member.ID,
		Raw:       rawKey.Raw,
		Suffix:    rawKey.Suffix,
		ExpiresAt: expiresAt,
	}, nil
}

// Suspend flips a member to suspended and revokes their sessions so the
// suspension takes effect immediately, not on next lookup.
func (s *MemberService) Suspend(ctx context.Context, memberID string) error {
	log := slogx.FromContext(ctx)

	if _, err := s.Store.Members().GetMemberByID(ctx, memberID); err != nil {
		return err
	}
	if err := s.Store.Members().UpdateMemberStatus(ctx, memberID, domain.MemberStatusSuspended); err != nil {
		log.Error("failed to suspend member", slog.Any("error", err))
		return err
	}
	if _, err := s.Store.Sessions().DeleteMemberSessions(ctx, memberID); err != nil {
		log.Error("failed to revoke sessions of suspended member", slog.Any("error", err))
		return err
	}
	if s.Audit != nil {
		s.Audit.LogAdminEvent("member_suspended", memberID, true, "", "", nil)
	}
	return nil
}

// ExportKeys returns a privacy-safe listing of issued keys, newest first.
func (s *MemberService) ExportKeys(ctx context.Context) ([]KeyExportRow, error) {
	log := slogx.FromContext(ctx)

	keys, err := s.Store.Keys().ListKeys(ctx)
	if err != nil {
		log.Error("key export listing failed", slog.Any("error", err))
		return nil, err
	}

	members, err := s.Store.Members().ListMembers(ctx)
	if err != nil {
		log.Error("member export listing failed", slog.Any("error", err))
		return nil, err
	}
	byID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	rows := make([]KeyExportRow, 0, len(keys))
	for _, k := range keys {
		member := byID[k.MemberID]
		prefix := member.EmailDigest
		if len(prefix) > emailDigestPrefixLength {
			prefix = prefix[:emailDigestPrefixLength]
		}
		rows = append(rows, KeyExportRow{
			CreatedAt:         k.CreatedAt,
			Status:            k.Status,
			Suffix:            k.Suffix,
			EmailDigestPrefix: prefix,
			Tier:              member.Tier,
			UseCount:          k.UseCount,
		})
	}
	return rows, nil
}
