package repository

import (
	"context"
	"database/sql"

	"examhub/internal/progress"
)

type PostgresProgressRepository struct {
	db *sql.DB
}

func NewPostgresProgressRepository(db *sql.DB) *PostgresProgressRepository {
	return &PostgresProgressRepository{db: db}
}

// Record bumps the counters for one answered question.
func (r *PostgresProgressRepository) Record(ctx context.Context, userID, questionSetID int64, correct bool) (*progress.Progress, error) {
	correctInc := 0
	if correct {
		correctInc = 1
	}

	p := &progress.Progress{UserID: userID, QuestionSetID: questionSetID}
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO progress (user_id, question_set_id, completed_questions, correct_answers, last_activity)
        VALUES ($1, $2, 1, $3, NOW())
        ON CONFLICT (user_id, question_set_id) DO UPDATE SET
            completed_questions = progress.completed_questions + 1,
            correct_answers = progress.correct_answers + $3,
            last_activity = NOW()
        RETURNING completed_questions, correct_answers, last_activity`,
		userID, questionSetID, correctInc).
		Scan(&p.CompletedQuestions, &p.CorrectAnswers, &p.LastActivity)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresProgressRepository) GetByUser(ctx context.Context, userID int64) ([]*progress.Progress, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT p.user_id, p.question_set_id, p.completed_questions, p.correct_answers, p.last_activity,
               COALESCE(s.title, '')
        FROM progress p
        LEFT JOIN question_sets s ON s.id = p.question_set_id
        WHERE p.user_id = $1
        ORDER BY p.last_activity DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*progress.Progress
	for rows.Next() {
		p := &progress.Progress{}
		err := rows.Scan(
			&p.UserID,
			&p.QuestionSetID,
			&p.CompletedQuestions,
			&p.CorrectAnswers,
			&p.LastActivity,
			&p.QuestionSetTitle,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	return items, rows.Err()
}
