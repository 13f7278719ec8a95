// Package cryptox holds the credential hashing and token generation
// primitives for the access gate. Raw access keys and member emails are
// never persisted; only peppered digests are.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// MinPepperLength is the minimum accepted pepper size. A shorter pepper is a
// deployment mistake and must reject all redemptions rather than weaken the
// digest scheme.
const MinPepperLength = 24

var (
	// ErrPepperMissing reports an absent or too-short pepper.
	ErrPepperMissing = errors.New("cryptox: pepper missing or shorter than minimum")

	// ErrEmptyCredential reports a credential that is empty after trimming.
	ErrEmptyCredential = errors.New("cryptox: cannot hash empty credential")
)

// Hasher derives deterministic, secret-keyed digests from raw credentials.
// Digests are HMAC-SHA256 keyed with a server-held pepper, so a leaked
// database cannot be joined against a rainbow table or a leaked key list.
type Hasher struct {
	pepper []byte
}

// NewHasher validates the pepper and returns a Hasher. Validation happens
// here, at construction, so a misconfigured deployment fails at startup
// instead of at the first redemption.
func NewHasher(pepper string) (*Hasher, error) {
	if len(pepper) < MinPepperLength {
		return nil, ErrPepperMissing
	}
	return &Hasher{pepper: []byte(pepper)}, nil
}

// HashKey returns the hex digest of a raw access key.
func (h *Hasher) HashKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyCredential
	}
	return h.digest(raw), nil
}

// HashEmail returns the hex digest of a normalised (trimmed, lowercased)
// email address. Used as the member lookup reference so raw addresses never
// touch the store.
func (h *Hasher) HashEmail(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrEmptyCredential
	}
	return h.digest(raw), nil
}

func (h *Hasher) digest(value string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
