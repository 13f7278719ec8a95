package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// SessionIDPrefix makes session identifiers recognisable in logs and
	// support tickets without weakening them.
	SessionIDPrefix = "sess_"

	sessionIDBytes = 32
	accessKeyBytes = 20

	// AccessKeyLength is the length keys are trimmed to after encoding,
	// chosen so keys paste cleanly into an email or a form field.
	AccessKeyLength = 24

	// KeySuffixLength is how much of the key tail is kept in the clear for
	// admin reference. Four characters reveal nothing useful to an attacker.
	KeySuffixLength = 4
)

// NewSessionID generates an unguessable, URL-safe session identifier from a
// cryptographically strong source. Never derived from time or sequence.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: session id generation failed: %w", err)
	}
	return SessionIDPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// AccessKey is a freshly generated raw key together with its admin-visible
// suffix. The raw value is returned to the caller exactly once; only digests
// are persisted.
type AccessKey struct {
	Raw    string
	Suffix string
}

// NewAccessKey generates a URL-safe access key.
func NewAccessKey() (AccessKey, error) {
	buf := make([]byte, accessKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return AccessKey{}, fmt.Errorf("cryptox: access key generation failed: %w", err)
	}

	raw := base64.RawURLEncoding.EncodeToString(buf)
	if len(raw) > AccessKeyLength {
		raw = raw[:AccessKeyLength]
	}

	return AccessKey{
		Raw:    raw,
		Suffix: raw[len(raw)-KeySuffixLength:],
	}, nil
}
