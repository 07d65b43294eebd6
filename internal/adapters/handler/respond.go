package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/spaceko/resource-status-service/internal/adapters/middleware"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/logging"
)

// Responder writes JSON bodies and maps domain errors to status codes.
// In production unexpected errors are reported without detail.
type Responder struct {
	logger     *slog.Logger
	production bool
}

func NewResponder(logger *slog.Logger, production bool) *Responder {
	return &Responder{logger: logging.OrDefault(logger), production: production}
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (rs *Responder) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Component(r.Context(), rs.logger, "Responder", "JSON").
			ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	body := ErrorResponse{Error: publicMessage(err, status)}

	var vErr *domain.ValidationError
	var aErr *domain.AuthorizationError
	switch {
	case errors.As(err, &vErr):
		body.Fields = vErr.FieldErrors
	case errors.As(err, &aErr):
		body.Reason = aErr.Reason
	case status == http.StatusInternalServerError:
		logging.Component(r.Context(), rs.logger, "Responder", "Error").
			ErrorContext(r.Context(), "request failed", "error_kind", domain.ErrorKind(err), "error", err)
		if !rs.production {
			body.Error = err.Error()
		}
	}
	rs.JSON(w, r, status, body)
}

// BadRequest reports a malformed request body or parameter.
func (rs *Responder) BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	rs.JSON(w, r, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func publicMessage(err error, status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "already exists"
	case http.StatusTooManyRequests:
		return "too many attempts, please try again later"
	case http.StatusUnauthorized:
		for _, known := range []error{
			domain.ErrInvalidCode,
			domain.ErrRoleMismatch,
			domain.ErrAccountInactive,
			domain.ErrSessionExpired,
		} {
			if errors.Is(err, known) {
				return known.Error()
			}
		}
		return domain.ErrUnauthenticated.Error()
	}
	return "internal server error"
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func actorOf(r *http.Request) domain.Actor {
	actor, _ := middleware.ActorFrom(r.Context())
	return actor
}

// queryInt parses a positive integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, key+" must be a non-negative integer")
	}
	return n, nil
}
