package repository

import (
	"context"
	"database/sql"

	"examhub/internal/redeemcode"
)

type PostgresRedeemCodeRepository struct {
	db *sql.DB
}

func NewPostgresRedeemCodeRepository(db *sql.DB) *PostgresRedeemCodeRepository {
	return &PostgresRedeemCodeRepository{db: db}
}

func (r *PostgresRedeemCodeRepository) Create(ctx context.Context, rc *redeemcode.RedeemCode) error {
	query := `
        INSERT INTO redeem_codes (code, question_set_id, validity_days, expires_at, created_by)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		rc.Code, rc.QuestionSetID, rc.ValidityDays, rc.ExpiresAt, rc.CreatedBy).
		Scan(&rc.ID, &rc.CreatedAt)
}

func (r *PostgresRedeemCodeRepository) GetByID(ctx context.Context, id int64) (*redeemcode.RedeemCode, error) {
	rc := &redeemcode.RedeemCode{}
	query := `SELECT id, code, question_set_id, validity_days, expires_at, is_used, used_by, used_at, created_by, created_at
              FROM redeem_codes WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rc.ID,
		&rc.Code,
		&rc.QuestionSetID,
		&rc.ValidityDays,
		&rc.ExpiresAt,
		&rc.IsUsed,
		&rc.UsedBy,
		&rc.UsedAt,
		&rc.CreatedBy,
		&rc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return rc, nil
}

// GetAll returns every code with the redeemer's email and the set title joined in.
func (r *PostgresRedeemCodeRepository) GetAll(ctx context.Context) ([]*redeemcode.RedeemCode, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT rc.id, rc.code, rc.question_set_id, rc.validity_days, rc.expires_at,
               rc.is_used, rc.used_by, rc.used_at, rc.created_by, rc.created_at,
               u.email, COALESCE(s.title, '')
        FROM redeem_codes rc
        LEFT JOIN users u ON u.id = rc.used_by
        LEFT JOIN question_sets s ON s.id = rc.question_set_id
        ORDER BY rc.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*redeemcode.RedeemCode
	for rows.Next() {
		rc := &redeemcode.RedeemCode{}
		err := rows.Scan(
			&rc.ID,
			&rc.Code,
			&rc.QuestionSetID,
			&rc.ValidityDays,
			&rc.ExpiresAt,
			&rc.IsUsed,
			&rc.UsedBy,
			&rc.UsedAt,
			&rc.CreatedBy,
			&rc.CreatedAt,
			&rc.UsedByEmail,
			&rc.QuestionSetTitle,
		)
		if err != nil {
			return nil, err
		}
		codes = append(codes, rc)
	}

	return codes, rows.Err()
}

func (r *PostgresRedeemCodeRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM redeem_codes WHERE id = $1`, id)
	return err
}
