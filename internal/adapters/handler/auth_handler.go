package handler

import (
	"net/http"
	"strings"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	resp        *Responder
}

func NewAuthHandler(auth ports.AuthService, resp *Responder) *AuthHandler {
	return &AuthHandler{authService: auth, resp: resp}
}

type LoginRequest struct {
	UserCode string          `json:"userCode"`
	UserType domain.UserType `json:"userType"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.BadRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserCode) == "" || req.UserType == "" {
		h.resp.Error(w, r, domain.NewValidationError("userCode", "userCode and userType are required"))
		return
	}

	res, err := h.authService.Login(r.Context(), req.UserCode, req.UserType)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		h.resp.BadRequest(w, r, "refreshToken is required")
		return
	}
	res, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, res)
}

// Logout ends the caller's session. Repeating it is harmless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), actorOf(r).SessionID); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the identity behind the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	h.resp.JSON(w, r, http.StatusOK, map[string]string{
		"userCode":  actor.UserCode,
		"userType":  string(actor.UserType),
		"username":  actor.Username,
		"sessionId": actor.SessionID,
	})
}
