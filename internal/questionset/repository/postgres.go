package repository

import (
	"context"
	"database/sql"

	"examhub/internal/questionset"
)

type PostgresQuestionSetRepository struct {
	db *sql.DB
}

func NewPostgresQuestionSetRepository(db *sql.DB) *PostgresQuestionSetRepository {
	return &PostgresQuestionSetRepository{db: db}
}

func (r *PostgresQuestionSetRepository) Create(ctx context.Context, qs *questionset.QuestionSet) error {
	query := `
        INSERT INTO question_sets (title, category, description, is_paid, price, trial_questions)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		qs.Title, qs.Category, qs.Description, qs.IsPaid, qs.Price, qs.TrialQuestions).
		Scan(&qs.ID, &qs.CreatedAt, &qs.UpdatedAt)
}

func (r *PostgresQuestionSetRepository) Update(ctx context.Context, qs *questionset.QuestionSet) error {
	query := `UPDATE question_sets SET
              title = $1,
              category = $2,
              description = $3,
              is_paid = $4,
              price = $5,
              trial_questions = $6,
              updated_at = NOW()
              WHERE id = $7`

	res, err := r.db.ExecContext(ctx, query,
		qs.Title, qs.Category, qs.Description, qs.IsPaid, qs.Price, qs.TrialQuestions, qs.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresQuestionSetRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM question_sets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresQuestionSetRepository) GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs := &questionset.QuestionSet{}
	query := `
        SELECT s.id, s.title, s.category, s.description, s.is_paid, s.price, s.trial_questions,
               (SELECT COUNT(*) FROM questions q WHERE q.question_set_id = s.id),
               s.created_at, s.updated_at
        FROM question_sets s WHERE s.id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&qs.ID,
		&qs.Title,
		&qs.Category,
		&qs.Description,
		&qs.IsPaid,
		&qs.Price,
		&qs.TrialQuestions,
		&qs.QuestionCount,
		&qs.CreatedAt,
		&qs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return qs, nil
}

func (r *PostgresQuestionSetRepository) GetAll(ctx context.Context, category string) ([]*questionset.QuestionSet, error) {
	query := `
        SELECT s.id, s.title, s.category, s.description, s.is_paid, s.price, s.trial_questions,
               (SELECT COUNT(*) FROM questions q WHERE q.question_set_id = s.id),
               s.created_at, s.updated_at
        FROM question_sets s
        WHERE ($1 = '' OR s.category = $1)
        ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*questionset.QuestionSet
	for rows.Next() {
		qs := &questionset.QuestionSet{}
		err := rows.Scan(
			&qs.ID,
			&qs.Title,
			&qs.Category,
			&qs.Description,
			&qs.IsPaid,
			&qs.Price,
			&qs.TrialQuestions,
			&qs.QuestionCount,
			&qs.CreatedAt,
			&qs.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		sets = append(sets, qs)
	}

	return sets, rows.Err()
}

// CreateQuestion inserts a question together with its options in one transaction.
func (r *PostgresQuestionSetRepository) CreateQuestion(ctx context.Context, q *questionset.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO questions (question_set_id, text, explanation, position)
         VALUES ($1, $2, $3, $4) RETURNING id`,
		q.QuestionSetID, q.Text, q.Explanation, q.Position).Scan(&q.ID)
	if err != nil {
		return err
	}

	for i := range q.Options {
		opt := &q.Options[i]
		opt.QuestionID = q.ID
		err = tx.QueryRowContext(ctx,
			`INSERT INTO options (question_id, text, is_correct, position)
             VALUES ($1, $2, $3, $4) RETURNING id`,
			opt.QuestionID, opt.Text, opt.IsCorrect != nil && *opt.IsCorrect, opt.Position).Scan(&opt.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresQuestionSetRepository) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetQuestions loads questions ordered by position. limit < 0 means all.
func (r *PostgresQuestionSetRepository) GetQuestions(ctx context.Context, setID int64, limit int) ([]*questionset.Question, error) {
	query := `
        SELECT id, question_set_id, text, explanation, position
        FROM questions WHERE question_set_id = $1
        ORDER BY position, id`
	args := []interface{}{setID}
	if limit >= 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*questionset.Question
	byID := make(map[int64]*questionset.Question)
	for rows.Next() {
		q := &questionset.Question{}
		if err := rows.Scan(&q.ID, &q.QuestionSetID, &q.Text, &q.Explanation, &q.Position); err != nil {
			return nil, err
		}
		questions = append(questions, q)
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	optRows, err := r.db.QueryContext(ctx, `
        SELECT o.id, o.question_id, o.text, o.is_correct, o.position
        FROM options o
        JOIN questions q ON q.id = o.question_id
        WHERE q.question_set_id = $1
        ORDER BY o.position, o.id`, setID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var opt questionset.Option
		var isCorrect bool
		if err := optRows.Scan(&opt.ID, &opt.QuestionID, &opt.Text, &isCorrect, &opt.Position); err != nil {
			return nil, err
		}
		opt.IsCorrect = &isCorrect
		if q, ok := byID[opt.QuestionID]; ok {
			q.Options = append(q.Options, opt)
		}
	}

	return questions, optRows.Err()
}
