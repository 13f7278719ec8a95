package service

import "errors"

var (
	// ErrInvalidKey covers both an empty key and a digest miss. The two are
	// deliberately indistinguishable so callers cannot enumerate keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrServerNotConfigured reports a hashing configuration failure. The
	// external message stays generic; details go to the log only.
	ErrServerNotConfigured = errors.New("server not configured")

	ErrKeyRevoked         = errors.New("key revoked")
	ErrKeyAlreadyUsed     = errors.New("key already used")
	ErrKeyExpired         = errors.New("key expired")
	ErrMembershipInactive = errors.New("membership inactive or suspended")

	// ErrUnauthorized is the single answer for every failed session
	// resolution: absent, expired, revoked or a storage fault.
	ErrUnauthorized = errors.New("unauthorized")
)

// Reason returns the fixed external message for a rejection. Unknown errors
// collapse to the invalid-key message so internals never leak.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrServerNotConfigured):
		return "Server not configured"
	case errors.Is(err, ErrKeyRevoked):
		return "Key revoked"
	case errors.Is(err, ErrKeyAlreadyUsed):
		return "Key already used"
	case errors.Is(err, ErrKeyExpired):
		return "Key expired"
	case errors.Is(err, ErrMembershipInactive):
		return "Membership inactive or suspended"
	default:
		return "Invalid key"
	}
}
