package handler

import (
	"net/http"

	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// BoardHandler serves the contributor leaderboard and the audit view.
type BoardHandler struct {
	contributors ports.ContributorService
	audit        ports.AuditService
	resp         *Responder
}

func NewBoardHandler(contributors ports.ContributorService, audit ports.AuditService, resp *Responder) *BoardHandler {
	return &BoardHandler{contributors: contributors, audit: audit, resp: resp}
}

func (h *BoardHandler) Contributors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	top, err := h.contributors.Top(r.Context(), limit)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, top)
}

func (h *BoardHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	entries, err := h.audit.Recent(r.Context(), actorOf(r), limit)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, entries)
}
