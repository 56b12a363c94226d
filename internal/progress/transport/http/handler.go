package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"examhub/internal/api/dto"
	"examhub/internal/progress/service"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req dto.ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	p, err := h.Service.Record(r.Context(), userID, req.QuestionSetID, req.Correct)
	if err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to record progress", err)
		return
	}

	api.JSON(w, http.StatusOK, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	items, err := h.Service.GetByUser(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to load progress", err)
		return
	}

	api.JSON(w, http.StatusOK, items)
}
