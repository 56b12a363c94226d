package repository

import (
	"context"
	"database/sql"

	"examhub/internal/purchase"
)

type PostgresPurchaseRepository struct {
	db *sql.DB
}

func NewPostgresPurchaseRepository(db *sql.DB) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{db: db}
}

const purchaseColumns = `id, user_id, question_set_id, purchase_date, expires_at, transaction_id, amount, payment_method, status, created_at`

func scanPurchase(row *sql.Row) (*purchase.Purchase, error) {
	p := &purchase.Purchase{}
	err := row.Scan(
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
		return nil, err
	}
	return p, nil
}

// GetActive returns the user's live entitlement for a question set, or nil.
func (r *PostgresPurchaseRepository) GetActive(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE user_id = $1 AND question_set_id = $2 AND status = 'completed' AND expires_at > NOW()
		 ORDER BY expires_at DESC LIMIT 1`,
		userID, questionSetID)

	p, err := scanPurchase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresPurchaseRepository) GetByTransactionID(ctx context.Context, transactionID string) (*purchase.Purchase, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE transaction_id = $1`,
		transactionID)
	return scanPurchase(row)
}

func (r *PostgresPurchaseRepository) Create(ctx context.Context, p *purchase.Purchase) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO purchases (user_id, question_set_id, purchase_date, expires_at, transaction_id, amount, payment_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		p.UserID, p.QuestionSetID, p.PurchaseDate, p.ExpiresAt, p.TransactionID, p.Amount, p.PaymentMethod, p.Status).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *PostgresPurchaseRepository) GetByUser(ctx context.Context, userID int64) ([]*purchase.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []*purchase.Purchase
	for rows.Next() {
		p := &purchase.Purchase{}
		err := rows.Scan(
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
			return nil, err
		}
		purchases = append(purchases, p)
	}

	return purchases, rows.Err()
}
