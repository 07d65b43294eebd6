package handler

import (
	"net/http"
	"strconv"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const versionHeader = "X-Snapshot-Version"

type ResourceHandler struct {
	resources ports.ResourceService
	resp      *Responder
}

func NewResourceHandler(resources ports.ResourceService, resp *Responder) *ResourceHandler {
	return &ResourceHandler{resources: resources, resp: resp}
}

type StatusRequest struct {
	Status domain.Status `json:"status"`
}

type SyncRequest struct {
	ClientVersion int64 `json:"clientVersion"`
	// Resources is the client's cached list. The server copy always wins,
	// so it is accepted but not inspected.
	Resources []any `json:"resources,omitempty"`
}

// List handles GET /resources with optional category, wing, floor and
// status filters.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	floor, err := queryInt(r, "floor")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := domain.ResourceFilter{
		Category: domain.Category(q.Get("category")),
		Wing:     q.Get("wing"),
		Floor:    floor,
		Status:   domain.Status(q.Get("status")),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		h.resp.Error(w, r, domain.NewValidationError("category", "unknown category"))
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.resp.Error(w, r, domain.NewValidationError("status", "unknown status"))
		return
	}

	list, err := h.resources.ListResources(r.Context(), filter)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, list)
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	res, err := h.resources.GetResource(r.Context(), id)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, r, http.StatusOK, res)
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec domain.ResourceRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		h.resp.BadRequest(w, r, "invalid request body")
		return
	}
	in, err := rec.Input()
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	res, err := h.resources.CreateResource(r.Context(), in, actorOf(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeMutation(w, r, http.StatusCreated, res)
}

// UpdateByID handles PUT /resources/{id}.
func (h *ResourceHandler) UpdateByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.updateStatus(w, r, domain.ByID(id))
}

// UpdateByName handles PATCH /resources/{name}/status.
func (h *ResourceHandler) UpdateByName(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, domain.ByName(r.PathValue("name")))
}

func (h *ResourceHandler) updateStatus(w http.ResponseWriter, r *http.Request, ref domain.ResourceRef) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.BadRequest(w, r, "invalid request body")
		return
	}
	if req.Status == "" {
		h.resp.Error(w, r, domain.NewValidationError("status", "status is required"))
		return
	}
	res, err := h.resources.ApplyStatusUpdate(r.Context(), ref, req.Status, actorOf(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeMutation(w, r, http.StatusOK, res)
}

func (h *ResourceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	res, err := h.resources.ApplyVerification(r.Context(), id, actorOf(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeMutation(w, r, http.StatusOK, res)
}

// Sync handles POST /resources/sync.
func (h *ResourceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.BadRequest(w, r, "invalid request body")
		return
	}
	res, err := h.resources.Reconcile(r.Context(), req.ClientVersion)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	w.Header().Set(versionHeader, strconv.FormatInt(res.Version, 10))
	h.resp.JSON(w, r, http.StatusOK, res)
}

func (h *ResourceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	state, err := h.resources.GetSnapshot(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	w.Header().Set(versionHeader, strconv.FormatInt(state.Version, 10))
	h.resp.JSON(w, r, http.StatusOK, state)
}

func (h *ResourceHandler) writeMutation(w http.ResponseWriter, r *http.Request, status int, res domain.MutationResult) {
	w.Header().Set(versionHeader, strconv.FormatInt(res.Version, 10))
	h.resp.JSON(w, r, status, res.Resource)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "id must be a positive integer")
	}
	return id, nil
}
