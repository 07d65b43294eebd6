package handler

import (
	"net/http"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

type UserHandler struct {
	users ports.UserService
	resp  *Responder
}

func NewUserHandler(users ports.UserService, resp *Responder) *UserHandler {
	return &UserHandler{users: users, resp: resp}
}

type CreateUserRequest struct {
	UserCode   string            `json:"userCode"`
	Username   string            `json:"username"`
	UserType   domain.UserType   `json:"userType"`
	Attributes domain.Attributes `json:"attributes"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.BadRequest(w, r, "invalid request body")
		return
	}
	created, err := h.users.CreateUser(r.Context(), actorOf(r), domain.User{
		UserCode:   req.UserCode,
		Username:   req.Username,
		UserType:   req.UserType,
		Attributes: req.Attributes,
	})
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusCreated, created)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context(), actorOf(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, list)
}

// SetActive handles PATCH /users/{code}/active.
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IsActive == nil {
		h.resp.BadRequest(w, r, "isActive is required")
		return
	}
	if err := h.users.SetActive(r.Context(), actorOf(r), r.PathValue("code"), *req.IsActive); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
