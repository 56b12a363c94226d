package service

import (
	"context"
	"database/sql"
	"errors"

	"examhub/internal/questionset"
)

var (
	ErrSetNotFound      = errors.New("question set not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidPrice     = errors.New("paid question set requires a price greater than zero")
)

type QuestionSetRepository interface {
	Create(ctx context.Context, qs *questionset.QuestionSet) error
	Update(ctx context.Context, qs *questionset.QuestionSet) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error)
	GetAll(ctx context.Context, category string) ([]*questionset.QuestionSet, error)
	CreateQuestion(ctx context.Context, q *questionset.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	GetQuestions(ctx context.Context, setID int64, limit int) ([]*questionset.Question, error)
}

// AccessChecker answers whether a user currently holds an entitlement for a
// question set. Implemented by the purchase service.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID, questionSetID int64) (bool, error)
}

type Service struct {
	Repo   QuestionSetRepository
	Access AccessChecker
}

func NewService(repo QuestionSetRepository, access AccessChecker) *Service {
	return &Service{Repo: repo, Access: access}
}

func validatePricing(qs *questionset.QuestionSet) error {
	if qs.IsPaid && !qs.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

func (s *Service) Create(ctx context.Context, qs *questionset.QuestionSet) error {
	if err := validatePricing(qs); err != nil {
		return err
	}
	return s.Repo.Create(ctx, qs)
}

func (s *Service) Update(ctx context.Context, qs *questionset.QuestionSet) error {
	if err := validatePricing(qs); err != nil {
		return err
	}
	err := s.Repo.Update(ctx, qs)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSetNotFound
	}
	return err
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.Repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSetNotFound
	}
	return err
}

func (s *Service) Get(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, err
	}
	return qs, nil
}

func (s *Service) List(ctx context.Context, category string) ([]*questionset.QuestionSet, error) {
	return s.Repo.GetAll(ctx, category)
}

func (s *Service) AddQuestion(ctx context.Context, q *questionset.Question) error {
	if _, err := s.Get(ctx, q.QuestionSetID); err != nil {
		return err
	}
	return s.Repo.CreateQuestion(ctx, q)
}

func (s *Service) DeleteQuestion(ctx context.Context, id int64) error {
	err := s.Repo.DeleteQuestion(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrQuestionNotFound
	}
	return err
}

// QuestionsResult carries the gating outcome alongside the questions so the
// client can tell a trial slice from the full set.
type QuestionsResult struct {
	Questions []*questionset.Question `json:"questions"`
	Trial     bool                    `json:"trial"`
	Total     int                     `json:"total"`
}

// GetQuestions applies trial gating: entitled users and free sets see
// everything; otherwise only the first trial_questions questions, with
// correct-answer flags and explanations withheld.
func (s *Service) GetQuestions(ctx context.Context, userID, setID int64) (*QuestionsResult, error) {
	qs, err := s.Get(ctx, setID)
	if err != nil {
		return nil, err
	}

	full := !qs.IsPaid
	if !full {
		full, err = s.Access.HasAccess(ctx, userID, setID)
		if err != nil {
			return nil, err
		}
	}

	limit := -1
	if !full {
		limit = qs.TrialQuestions
	}

	questions, err := s.Repo.GetQuestions(ctx, setID, limit)
	if err != nil {
		return nil, err
	}

	if !full {
		for _, q := range questions {
			q.Explanation = ""
			for i := range q.Options {
				q.Options[i].IsCorrect = nil
			}
		}
	}

	return &QuestionsResult{
		Questions: questions,
		Trial:     !full,
		Total:     qs.QuestionCount,
	}, nil
}
