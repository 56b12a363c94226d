package service

import (
	"context"
	"database/sql"
	"errors"

	"examhub/internal/progress"
	"examhub/internal/questionset"
)

var ErrSetNotFound = errors.New("question set not found")

type ProgressRepository interface {
	Record(ctx context.Context, userID, questionSetID int64, correct bool) (*progress.Progress, error)
	GetByUser(ctx context.Context, userID int64) ([]*progress.Progress, error)
}

type QuestionSetRepository interface {
	GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error)
}

type Service struct {
	Repo         ProgressRepository
	QuestionSets QuestionSetRepository
}

func NewService(repo ProgressRepository, sets QuestionSetRepository) *Service {
	return &Service{Repo: repo, QuestionSets: sets}
}

func (s *Service) Record(ctx context.Context, userID, questionSetID int64, correct bool) (*progress.Progress, error) {
	if _, err := s.QuestionSets.GetByID(ctx, questionSetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, err
	}
	return s.Repo.Record(ctx, userID, questionSetID, correct)
}

func (s *Service) GetByUser(ctx context.Context, userID int64) ([]*progress.Progress, error) {
	return s.Repo.GetByUser(ctx, userID)
}
