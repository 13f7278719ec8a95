package http

import (
	"net/http"

	"github.com/abraham-of-london/circlegate/internal/gate/service"
	"github.com/abraham-of-london/circlegate/pkg/httpx"
)

type SessionHandler struct {
	SessionService *service.SessionService
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, sessionResponse{Authorized: false})
		return
	}

	res, err := h.SessionService.Resolve(r.Context(), cookie.Value)
	if err != nil {
		// Every failure mode answers the same way; the log has the detail.
		httpx.WriteJSON(w, http.StatusUnauthorized, sessionResponse{Authorized: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Authorized: true,
		Tier:       res.Tier.String(),
		MemberID:   res.Member.ID,
	})
}
