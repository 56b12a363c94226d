package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"examhub/internal/api/dto"
	"examhub/internal/content"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

// Thin CRUD; the handler talks to the repository directly.
type ContentRepository interface {
	Upsert(ctx context.Context, b *content.Block) error
	GetAll(ctx context.Context) ([]*content.Block, error)
	Delete(ctx context.Context, slug string) error
}

type Handler struct {
	Repo ContentRepository
}

func NewHandler(repo ContentRepository) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.Repo.GetAll(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to load content", err)
		return
	}
	api.JSON(w, http.StatusOK, blocks)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		api.Fail(w, http.StatusBadRequest, "missing slug", nil)
		return
	}

	var req dto.ContentBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	b := &content.Block{
		Slug:      slug,
		Title:     req.Title,
		Body:      req.Body,
		Position:  req.Position,
		UpdatedBy: adminID,
	}
	if err := h.Repo.Upsert(r.Context(), b); err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to save content", err)
		return
	}

	api.JSON(w, http.StatusOK, b)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		api.Fail(w, http.StatusBadRequest, "missing slug", nil)
		return
	}

	if err := h.Repo.Delete(r.Context(), slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "content block not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to delete content", err)
		return
	}

	api.Message(w, http.StatusOK, "content block deleted")
}
