package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abraham-of-london/circlegate/internal/gate/service"
	"github.com/abraham-of-london/circlegate/pkg/httpx"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

// SessionCookieName is the cookie carrying the session identifier.
const SessionCookieName = "circle_session"

// AccessKeyHeader is the alternative to the JSON body for supplying a key.
const AccessKeyHeader = "X-Access-Key"

type RedeemHandler struct {
	RedeemService *service.RedeemService
	SecureCookies bool
}

func (h *RedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req redeemRequest
	if r.Body != nil {
		// A malformed body is not fatal; the header may still carry the key.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Key == "" {
		req.Key = r.Header.Get(AccessKeyHeader)
	}

	reqCtx := service.RequestContext{
		IP:        ratelimit.ClientIP(r.Header, r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Source:    req.Source,
	}

	res, err := h.RedeemService.Redeem(ctx, req.Key, reqCtx)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, service.ErrServerNotConfigured):
			status = http.StatusServiceUnavailable
		case errors.Is(err, service.ErrMembershipInactive):
			status = http.StatusForbidden
		}
		httpx.WriteJSON(w, status, errorResponse{Reason: service.Reason(err)})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    res.SessionID,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	log.Debug("redemption succeeded", "member_id", res.MemberID)

	httpx.WriteJSON(w, http.StatusOK, redeemResponse{
		OK:        true,
		Tier:      res.Tier.String(),
		MemberID:  res.MemberID,
		SessionID: res.SessionID,
		ExpiresAt: res.ExpiresAt,
	})
}
