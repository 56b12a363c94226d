package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"examhub/internal/purchase"
	"examhub/internal/questionset"
	"examhub/internal/redeemcode"
)

// SQLTxRunner runs redemption transactions against postgres.
type SQLTxRunner struct {
	DB *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{DB: db}
}

func (r *SQLTxRunner) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// pgTx implements Tx on a live *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

// GetCodeForUpdate locks the code row so concurrent redemptions of the same
// code serialize; the second reader blocks until the first commits and then
// sees is_used = true.
func (t *pgTx) GetCodeForUpdate(ctx context.Context, code string) (*redeemcode.RedeemCode, error) {
	rc := &redeemcode.RedeemCode{}
	query := `SELECT id, code, question_set_id, validity_days, expires_at, is_used, used_by, used_at, created_by, created_at
              FROM redeem_codes WHERE code = $1 FOR UPDATE`

	err := t.tx.QueryRowContext(ctx, query, code).Scan(
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

func (t *pgTx) MarkUsed(ctx context.Context, codeID, userID int64, usedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE redeem_codes SET is_used = true, used_by = $1, used_at = $2 WHERE id = $3`,
		userID, usedAt, codeID)
	return err
}

func (t *pgTx) GetQuestionSet(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs := &questionset.QuestionSet{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, title, category, description, is_paid, price, trial_questions, created_at, updated_at
		 FROM question_sets WHERE id = $1`,
		id).Scan(
		&qs.ID,
		&qs.Title,
		&qs.Category,
		&qs.Description,
		&qs.IsPaid,
		&qs.Price,
		&qs.TrialQuestions,
		&qs.CreatedAt,
		&qs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return qs, nil
}

func (t *pgTx) GetActivePurchase(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error) {
	p := &purchase.Purchase{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, question_set_id, purchase_date, expires_at, transaction_id, amount, payment_method, status, created_at
		 FROM purchases
		 WHERE user_id = $1 AND question_set_id = $2 AND status = 'completed' AND expires_at > NOW()
		 ORDER BY expires_at DESC LIMIT 1
		 FOR UPDATE`,
		userID, questionSetID).Scan(
		&p.ID,
		&p.UserID,
		&p.QuestionSetID,
		&p.PurchaseDate,
		&p.ExpiresAt,
		&p.TransactionID,
		&p.Amount,
		&p.PaymentMethod,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (t *pgTx) UpdatePurchaseExpiry(ctx context.Context, purchaseID int64, expiresAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE purchases SET expires_at = $1 WHERE id = $2`,
		expiresAt, purchaseID)
	return err
}

func (t *pgTx) CreatePurchase(ctx context.Context, p *purchase.Purchase) error {
	return t.tx.QueryRowContext(ctx,
		`INSERT INTO purchases (user_id, question_set_id, purchase_date, expires_at, transaction_id, amount, payment_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		p.UserID, p.QuestionSetID, p.PurchaseDate, p.ExpiresAt, p.TransactionID, p.Amount, p.PaymentMethod, p.Status).
		Scan(&p.ID, &p.CreatedAt)
}
