package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"examhub/internal/api/dto"
	"examhub/internal/questionset"
	"examhub/internal/questionset/service"
	"examhub/pkg/api"
	"examhub/pkg/middleware"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Service: s}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// List is public: anyone can browse the catalog.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "failed to list question sets", err)
		return
	}
	api.JSON(w, http.StatusOK, sets)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}

	qs, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to load question set", err)
		return
	}
	api.JSON(w, http.StatusOK, qs)
}

// GetQuestions returns the full set for entitled users, a trial slice otherwise.
func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	id, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}

	result, err := h.Service.GetQuestions(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to load questions", err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

func (h *Handler) decodeSet(r *http.Request) (*questionset.QuestionSet, error) {
	var req dto.QuestionSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if err := dto.Validate.Struct(req); err != nil {
		return nil, err
	}

	price := decimal.Zero
	if req.Price != "" {
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			return nil, errors.New("invalid price")
		}
	}

	return &questionset.QuestionSet{
		Title:          req.Title,
		Category:       req.Category,
		Description:    req.Description,
		IsPaid:         req.IsPaid,
		Price:          price,
		TrialQuestions: req.TrialQuestions,
	}, nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	qs, err := h.decodeSet(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.Service.Create(r.Context(), qs); err != nil {
		if errors.Is(err, service.ErrInvalidPrice) {
			api.Fail(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to create question set", err)
		return
	}
	api.JSON(w, http.StatusCreated, qs)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}
	qs, err := h.decodeSet(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	qs.ID = id

	if err := h.Service.Update(r.Context(), qs); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPrice):
			api.Fail(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrSetNotFound):
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
		default:
			api.Fail(w, http.StatusInternalServerError, "failed to update question set", err)
		}
		return
	}
	api.JSON(w, http.StatusOK, qs)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to delete question set", err)
		return
	}
	api.Message(w, http.StatusOK, "question set deleted")
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	setID, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question set id", err)
		return
	}

	var req dto.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	q := &questionset.Question{
		QuestionSetID: setID,
		Text:          req.Text,
		Explanation:   req.Explanation,
		Position:      req.Position,
	}
	for _, o := range req.Options {
		isCorrect := o.IsCorrect
		q.Options = append(q.Options, questionset.Option{
			Text:      o.Text,
			IsCorrect: &isCorrect,
			Position:  o.Position,
		})
	}

	if err := h.Service.AddQuestion(r.Context(), q); err != nil {
		if errors.Is(err, service.ErrSetNotFound) {
			api.Fail(w, http.StatusNotFound, "question set not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to create question", err)
		return
	}
	api.JSON(w, http.StatusCreated, q)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid question id", err)
		return
	}

	if err := h.Service.DeleteQuestion(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			api.Fail(w, http.StatusNotFound, "question not found", nil)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "failed to delete question", err)
		return
	}
	api.Message(w, http.StatusOK, "question deleted")
}
