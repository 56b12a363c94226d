package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"examhub/internal/metrics"
	"examhub/internal/purchase"
	"examhub/internal/questionset"
	"examhub/internal/redeemcode"
)

var (
	ErrCodeNotFound    = errors.New("redeem code not found")
	ErrCodeAlreadyUsed = errors.New("redeem code has already been used")
	ErrCodeExpired     = errors.New("redeem code has expired")
	ErrSetNotFound     = errors.New("question set not found")
	ErrCodeUsedDelete  = errors.New("cannot delete a code that has been used")
)

type RedeemCodeRepository interface {
	Create(ctx context.Context, rc *redeemcode.RedeemCode) error
	GetByID(ctx context.Context, id int64) (*redeemcode.RedeemCode, error)
	GetAll(ctx context.Context) ([]*redeemcode.RedeemCode, error)
	Delete(ctx context.Context, id int64) error
}

type QuestionSetRepository interface {
	GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error)
}

// Tx is the row-level view the redemption transaction works through. The
// code row is returned locked, so concurrent redemptions of the same code
// serialize on it and the loser observes is_used = true.
type Tx interface {
	GetCodeForUpdate(ctx context.Context, code string) (*redeemcode.RedeemCode, error)
	MarkUsed(ctx context.Context, codeID, userID int64, usedAt time.Time) error
	GetQuestionSet(ctx context.Context, id int64) (*questionset.QuestionSet, error)
	GetActivePurchase(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error)
	UpdatePurchaseExpiry(ctx context.Context, purchaseID int64, expiresAt time.Time) error
	CreatePurchase(ctx context.Context, p *purchase.Purchase) error
}

// TxRunner runs fn inside a single database transaction; any error rolls
// back every write fn made.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Service struct {
	Repo         RedeemCodeRepository
	QuestionSets QuestionSetRepository
	Runner       TxRunner
}

func NewService(repo RedeemCodeRepository, sets QuestionSetRepository, runner TxRunner) *Service {
	return &Service{Repo: repo, QuestionSets: sets, Runner: runner}
}

// RedemptionResult reports the entitlement the redemption produced.
type RedemptionResult struct {
	QuestionSetID int64     `json:"question_set_id"`
	ValidityDays  int       `json:"validity_days"`
	ExpiresAt     time.Time `json:"expires_at"`
	Extended      bool      `json:"extended"`
}

// Redeem atomically consumes a code and grants or extends the caller's
// entitlement. All checks and writes happen in one transaction; a failure at
// any step leaves the code unused.
func (s *Service) Redeem(ctx context.Context, userID int64, code string) (*RedemptionResult, error) {
	var result *RedemptionResult

	err := s.Runner.InTx(ctx, func(tx Tx) error {
		rc, err := tx.GetCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCodeNotFound
			}
			return err
		}

		now := time.Now()
		if err := checkRedeemable(rc, now); err != nil {
			return err
		}

		qs, err := tx.GetQuestionSet(ctx, rc.QuestionSetID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSetNotFound
			}
			return err
		}

		if err := tx.MarkUsed(ctx, rc.ID, userID, now); err != nil {
			return err
		}

		grantExpiry := now.AddDate(0, 0, rc.ValidityDays)

		existing, err := tx.GetActivePurchase(ctx, userID, qs.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			// Never shorten an existing entitlement.
			final := resolveExpiry(existing.ExpiresAt, grantExpiry)
			if final.After(existing.ExpiresAt) {
				if err := tx.UpdatePurchaseExpiry(ctx, existing.ID, final); err != nil {
					return err
				}
			}
			result = &RedemptionResult{
				QuestionSetID: qs.ID,
				ValidityDays:  rc.ValidityDays,
				ExpiresAt:     final,
				Extended:      true,
			}
			return nil
		}

		p := &purchase.Purchase{
			UserID:        userID,
			QuestionSetID: qs.ID,
			PurchaseDate:  now,
			ExpiresAt:     grantExpiry,
			TransactionID: transactionIDForCode(code),
			Amount:        decimal.Zero,
			PaymentMethod: purchase.MethodRedeemCode,
			Status:        purchase.StatusCompleted,
		}
		if err := tx.CreatePurchase(ctx, p); err != nil {
			return err
		}

		result = &RedemptionResult{
			QuestionSetID: qs.ID,
			ValidityDays:  rc.ValidityDays,
			ExpiresAt:     grantExpiry,
		}
		return nil
	})
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues(redemptionLabel(err)).Inc()
		return nil, err
	}

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	return result, nil
}

// checkRedeemable applies the usability checks in contract order: used
// before expired, so a used-and-expired code reports AlreadyUsed.
func checkRedeemable(rc *redeemcode.RedeemCode, now time.Time) error {
	if rc.IsUsed {
		return ErrCodeAlreadyUsed
	}
	if now.After(rc.ExpiresAt) {
		return ErrCodeExpired
	}
	return nil
}

// resolveExpiry picks the later of the existing entitlement expiry and the
// freshly granted one.
func resolveExpiry(existing, granted time.Time) time.Time {
	if existing.After(granted) {
		return existing
	}
	return granted
}

// transactionIDForCode derives the purchase transaction id from the code.
// Codes are unique, so the derived id collides only on an integrity fault,
// which the unique index turns into a transaction failure.
func transactionIDForCode(code string) string {
	return "redeem_" + code
}

func redemptionLabel(err error) string {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrCodeAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrSetNotFound):
		return "set_not_found"
	default:
		return "error"
	}
}

// code alphabet avoids ambiguous characters (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const codeLength = 10

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Generate bulk-creates codes for a question set. expiresAt bounds the
// code's own usability and defaults to now + validityDays.
func (s *Service) Generate(ctx context.Context, adminID, questionSetID int64, validityDays, quantity int, expiresAt *time.Time) ([]*redeemcode.RedeemCode, error) {
	if _, err := s.QuestionSets.GetByID(ctx, questionSetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, err
	}

	expiry := time.Now().AddDate(0, 0, validityDays)
	if expiresAt != nil {
		expiry = *expiresAt
	}

	codes := make([]*redeemcode.RedeemCode, 0, quantity)
	for i := 0; i < quantity; i++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		rc := &redeemcode.RedeemCode{
			Code:          code,
			QuestionSetID: questionSetID,
			ValidityDays:  validityDays,
			ExpiresAt:     expiry,
			CreatedBy:     adminID,
		}
		if err := s.Repo.Create(ctx, rc); err != nil {
			return nil, err
		}
		codes = append(codes, rc)
	}

	return codes, nil
}

func (s *Service) GetAll(ctx context.Context) ([]*redeemcode.RedeemCode, error) {
	return s.Repo.GetAll(ctx)
}

// Delete removes an unused code. Used codes are part of the purchase audit
// trail and stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeNotFound
		}
		return err
	}
	if rc.IsUsed {
		return ErrCodeUsedDelete
	}
	return s.Repo.Delete(ctx, id)
}
