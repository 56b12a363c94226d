package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"examhub/internal/api/dto"
	"examhub/internal/payment"
	"examhub/internal/purchase/service"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

// WebhookVerifier checks the gateway signature on webhook payloads.
// Implemented by payment.StripeClient.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (*payment.Event, error)
}

type Handler struct {
	Service  *service.Service
	Verifier WebhookVerifier
}

func NewHandler(s *service.Service, verifier WebhookVerifier) *Handler {
	return &Handler{Service: s, Verifier: verifier}
}

// CheckAccess handles GET /api/purchases/check/{quizID}.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	quizID, err := strconv.ParseInt(chi.URLParam(r, "quizID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}

	access, err := h.Service.CheckAccess(r.Context(), userID, quizID)
	if err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "access check failed", err)
		return
	}

	api.JSON(w, http.StatusOK, access)
}

// Create handles POST /api/purchases: opens a payment intent with the gateway.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req dto.CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	result, err := h.Service.CreatePaymentIntent(r.Context(), userID, req.QuestionSetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetNotFound):
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
		case errors.Is(err, service.ErrNotPaidSet):
			api.Fail(w, http.StatusBadRequest, "question set is not paid", nil)
		default:
			api.Fail(w, http.StatusInternalServerError, "failed to create payment", err)
		}
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// Complete handles POST /api/purchases/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req dto.CompletePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	p, err := h.Service.Complete(r.Context(), userID, req.QuestionSetID, req.PaymentIntentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetNotFound):
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
		case errors.Is(err, service.ErrPaymentNotCompleted):
			api.Fail(w, http.StatusBadRequest, "payment has not succeeded", nil)
		case errors.Is(err, service.ErrIntentMismatch):
			api.Fail(w, http.StatusBadRequest, "payment does not match this question set", nil)
		case errors.Is(err, service.ErrDuplicateTransaction):
			api.Fail(w, http.StatusConflict, "transaction already recorded", nil)
		default:
			api.Fail(w, http.StatusInternalServerError, "failed to complete purchase", err)
		}
		return
	}

	api.JSON(w, http.StatusOK, p)
}

// List handles GET /api/purchases.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	purchases, err := h.Service.ListByUser(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to list purchases", err)
		return
	}

	api.JSON(w, http.StatusOK, purchases)
}

// Webhook handles gateway callbacks. The signature check is the auth here;
// the route is unauthenticated otherwise.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "failed to read payload", err)
		return
	}

	event, err := h.Verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid webhook signature", err)
		return
	}

	if event.Type != "payment_intent.succeeded" || event.Intent == nil {
		// Not an event we act on; acknowledge so the gateway stops retrying.
		api.Message(w, http.StatusOK, "ignored")
		return
	}

	if _, err := h.Service.CompleteFromEvent(r.Context(), event.Intent); err != nil {
		// Duplicate delivery is expected; anything else should be retried.
		if errors.Is(err, service.ErrDuplicateTransaction) {
			api.Message(w, http.StatusOK, "already recorded")
			return
		}
		log.Printf("webhook completion failed for intent %s: %v", event.Intent.ID, err)
		api.Fail(w, http.StatusInternalServerError, "failed to process webhook", err)
		return
	}

	api.Message(w, http.StatusOK, "processed")
}
