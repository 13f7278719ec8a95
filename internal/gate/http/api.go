package http

import "time"

type errorResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

type redeemRequest struct {
	Key    string `json:"key"`
	Source string `json:"source,omitempty"`
}

type redeemResponse struct {
	OK        bool      `json:"ok"`
	Tier      string    `json:"tier"`
	MemberID  string    `json:"member_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionResponse struct {
	Authorized bool   `json:"authorized"`
	Tier       string `json:"tier,omitempty"`
	MemberID   string `json:"member_id,omitempty"`
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Tier  string `json:"tier"`
}

type registerResponse struct {
	MemberID  string     `json:"member_id"`
	Key       string     `json:"key"`
	KeySuffix string     `json:"key_suffix"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type revokeKeyRequest struct {
	Key    string `json:"key,omitempty"`
	Digest string `json:"digest,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type revokeSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	MemberID  string `json:"member_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type revokeResponse struct {
	Revoked bool  `json:"revoked"`
	Count   int64 `json:"count,omitempty"`
}

type exportRow struct {
	CreatedAt         time.Time `json:"created_at"`
	Status            string    `json:"status"`
	KeySuffix         string    `json:"key_suffix"`
	EmailDigestPrefix string    `json:"email_digest_prefix"`
	Tier              string    `json:"tier"`
	UseCount          int       `json:"use_count"`
}

type unblockRequest struct {
	Identifier string `json:"identifier"`
	Prefix     string `json:"prefix"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Checks  any    `json:"checks,omitempty"`
}

type healthChecks struct {
	Database  string `json:"database"`
	RateLimit string `json:"rate_limit"`
}
