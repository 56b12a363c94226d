package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"examhub/internal/api/dto"
	"examhub/internal/token"
	"examhub/internal/user/service"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

type RefreshTokenRepository interface {
	Save(ctx context.Context, t *token.Token) error
	GetByToken(ctx context.Context, tokenStr string) (*token.Token, error)
	DeleteByToken(ctx context.Context, tokenStr string) error
}

type Handler struct {
	UserService *service.UserService
	JWT         *service.JWTManager
	Tokens      RefreshTokenRepository
}

func NewHandler(us *service.UserService, jwtSecret string, tokens RefreshTokenRepository) *Handler {
	return &Handler{
		UserService: us,
		JWT:         service.NewJWTManager(jwtSecret),
		Tokens:      tokens,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	u, err := h.UserService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			api.Fail(w, http.StatusBadRequest, "user already exists", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "registration failed", err)
		return
	}

	api.JSON(w, http.StatusCreated, map[string]interface{}{
		"id":    u.ID,
		"email": u.Email,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	u, err := h.UserService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	accessToken, err := h.JWT.Generate(u.ID, u.Email)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	refreshToken, err := token.NewRefreshToken(u.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}
	if err := h.Tokens.Save(r.Context(), refreshToken); err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"id":            u.ID,
		"email":         u.Email,
		"is_admin":      u.IsAdmin,
		"token":         accessToken,
		"refresh_token": refreshToken.Token,
	})
}

// Refresh rotates the refresh token and issues a fresh access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	stored, err := h.Tokens.GetByToken(r.Context(), req.RefreshToken)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = h.Tokens.DeleteByToken(r.Context(), stored.Token)
		api.Fail(w, http.StatusUnauthorized, "refresh token expired", nil)
		return
	}

	u, err := h.UserService.GetByID(r.Context(), stored.UserID)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	accessToken, err := h.JWT.Generate(u.ID, u.Email)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	next, err := token.NewRefreshToken(u.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}
	if err := h.Tokens.Save(r.Context(), next); err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}
	_ = h.Tokens.DeleteByToken(r.Context(), stored.Token)

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"token":         accessToken,
		"refresh_token": next.Token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	u, err := h.UserService.GetByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "user not found", err)
		return
	}

	api.JSON(w, http.StatusOK, u)
}
