package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abraham-of-london/circlegate/internal/gate/service"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/httpx"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

type AdminHandler struct {
	MemberService  *service.MemberService
	RevokeService  *service.RevokeService
	SessionService *service.SessionService
	Hasher         *cryptox.Hasher
	Limiter        *ratelimit.Limiter
}

// HandleRegister creates (or reuses) a member and issues a fresh access key.
// The raw key appears in this response and nowhere else.
func (h *AdminHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid request body"})
		return
	}
	if req.Email == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "email is required"})
		return
	}

	issued, err := h.MemberService.Register(ctx, req.Email, req.Name, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid email"})
		case errors.Is(err, service.ErrServerNotConfigured):
			httpx.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Reason: service.Reason(err)})
		default:
			log.Error("member registration failed", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Registration failed"})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, registerResponse{
		MemberID:  issued.MemberID,
		Key:       issued.Raw,
		KeySuffix: issued.Suffix,
		ExpiresAt: issued.ExpiresAt,
	})
}

// HandleRevokeKey revokes a key by raw value or digest.
func (h *AdminHandler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req revokeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid request body"})
		return
	}

	digest := req.Digest
	if digest == "" && req.Key != "" {
		var err error
		digest, err = h.Hasher.HashKey(req.Key)
		if err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid key"})
			return
		}
	}
	if digest == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "key or digest is required"})
		return
	}

	revoked, err := h.RevokeService.RevokeKey(ctx, digest, req.Reason)
	if err != nil {
		log.Error("key revocation failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Revocation failed"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
}

// HandleRevokeSession revokes one session by id, or every session of a
// member.
func (h *AdminHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req revokeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid request body"})
		return
	}

	switch {
	case req.SessionID != "":
		revoked, err := h.RevokeService.RevokeSession(ctx, req.SessionID, req.Reason)
		if err != nil {
			log.Error("session revocation failed", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Revocation failed"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
	case req.MemberID != "":
		n, err := h.RevokeService.RevokeMemberSessions(ctx, req.MemberID, req.Reason)
		if err != nil {
			log.Error("member session revocation failed", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Revocation failed"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, revokeResponse{Revoked: n > 0, Count: n})
	default:
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "session_id or member_id is required"})
	}
}

// HandleExport returns the privacy-safe key listing.
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	rows, err := h.MemberService.ExportKeys(ctx)
	if err != nil {
		log.Error("key export failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Export failed"})
		return
	}

	out := make([]exportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, exportRow{
			CreatedAt:         row.CreatedAt,
			Status:            row.Status,
			KeySuffix:         row.Suffix,
			EmailDigestPrefix: row.EmailDigestPrefix,
			Tier:              row.Tier,
			UseCount:          row.UseCount,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleSuspend suspends a member and revokes their sessions.
func (h *AdminHandler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	memberID := r.PathValue("id")
	if memberID == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "member id is required"})
		return
	}

	if err := h.MemberService.Suspend(ctx, memberID); err != nil {
		log.Error("member suspension failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Reason: "Suspension failed"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, revokeResponse{Revoked: true})
}

// HandleUnblock clears the in-process rate limit counter for one identifier.
func (h *AdminHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	var req unblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "Invalid request body"})
		return
	}
	if req.Identifier == "" || req.Prefix == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Reason: "identifier and prefix are required"})
		return
	}

	h.Limiter.Unblock(req.Identifier, ratelimit.Policy{Prefix: req.Prefix})
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
