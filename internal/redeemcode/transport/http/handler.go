package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"examhub/internal/api/dto"
	"examhub/internal/redeemcode/service"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Service: s}
}

// Redeem handles POST /api/redeem-codes/redeem.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req dto.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	result, err := h.Service.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			api.Fail(w, http.StatusNotFound, "redeem code not found", nil)
		case errors.Is(err, service.ErrCodeAlreadyUsed):
			api.Fail(w, http.StatusBadRequest, "redeem code has already been used", nil)
		case errors.Is(err, service.ErrCodeExpired):
			api.Fail(w, http.StatusBadRequest, "redeem code has expired", nil)
		case errors.Is(err, service.ErrSetNotFound):
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
		default:
			api.Fail(w, http.StatusInternalServerError, "failed to redeem code", err)
		}
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// Generate handles POST /api/redeem-codes/generate (admin only).
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req dto.GenerateCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid expiresAt, expected RFC3339", err)
			return
		}
		expiresAt = &parsed
	}

	codes, err := h.Service.Generate(r.Context(), adminID, req.QuestionSetID, req.ValidityDays, req.Quantity, expiresAt)
	if err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to generate codes", err)
		return
	}

	api.JSON(w, http.StatusCreated, codes)
}

// List handles GET /api/redeem-codes (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Service.GetAll(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to list codes", err)
		return
	}

	api.JSON(w, http.StatusOK, codes)
}

// Delete handles DELETE /api/redeem-codes/{id} (admin only). Used codes
// cannot be deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid code id", err)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			api.Fail(w, http.StatusNotFound, "redeem code not found", nil)
		case errors.Is(err, service.ErrCodeUsedDelete):
			api.Fail(w, http.StatusBadRequest, "cannot delete a code that has been used", nil)
		default:
			api.Fail(w, http.StatusInternalServerError, "failed to delete code", err)
		}
		return
	}

	api.Message(w, http.StatusOK, "redeem code deleted")
}
