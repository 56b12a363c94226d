package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"examhub/internal/metrics"
	"examhub/internal/payment"
	"examhub/internal/purchase"
	"examhub/internal/questionset"
)

var (
	ErrSetNotFound          = errors.New("question set not found")
	ErrNotPaidSet           = errors.New("question set is not paid")
	ErrPaymentNotCompleted  = errors.New("payment has not succeeded")
	ErrIntentMismatch       = errors.New("payment intent does not match this question set")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// Paid purchases grant a fixed six month entitlement window.
const paidEntitlementMonths = 6

const currency = "usd"

type PurchaseRepository interface {
	GetActive(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*purchase.Purchase, error)
	Create(ctx context.Context, p *purchase.Purchase) error
	GetByUser(ctx context.Context, userID int64) ([]*purchase.Purchase, error)
}

type QuestionSetRepository interface {
	GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error)
}

// PaymentProvider is the gateway surface the service needs: intent creation
// and retrieval. Implemented by payment.StripeClient.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error)
	GetIntent(ctx context.Context, id string) (*payment.Intent, error)
}

type Service struct {
	Repo         PurchaseRepository
	QuestionSets QuestionSetRepository
	Provider     PaymentProvider
}

func NewService(repo PurchaseRepository, sets QuestionSetRepository, provider PaymentProvider) *Service {
	return &Service{Repo: repo, QuestionSets: sets, Provider: provider}
}

func (s *Service) getSet(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs, err := s.QuestionSets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, err
	}
	return qs, nil
}

// CheckAccess answers "does this user have access to this set right now".
// Read-only; the purchases table is the only source of truth.
func (s *Service) CheckAccess(ctx context.Context, userID, questionSetID int64) (*purchase.Access, error) {
	qs, err := s.getSet(ctx, questionSetID)
	if err != nil {
		return nil, err
	}

	if !qs.IsPaid {
		metrics.AccessChecksTotal.WithLabelValues("free").Inc()
		return &purchase.Access{HasAccess: true, IsFree: true}, nil
	}

	active, err := s.Repo.GetActive(ctx, userID, questionSetID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		metrics.AccessChecksTotal.WithLabelValues("entitled").Inc()
		expiry := active.ExpiresAt
		return &purchase.Access{
			HasAccess:     true,
			ExpiryDate:    &expiry,
			RemainingDays: remainingDays(expiry, time.Now()),
		}, nil
	}

	metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
	price := qs.Price
	trial := qs.TrialQuestions
	return &purchase.Access{
		HasAccess:      false,
		Price:          &price,
		TrialQuestions: &trial,
	}, nil
}

// HasAccess is the boolean view of CheckAccess used by trial gating.
func (s *Service) HasAccess(ctx context.Context, userID, questionSetID int64) (bool, error) {
	active, err := s.Repo.GetActive(ctx, userID, questionSetID)
	if err != nil {
		return false, err
	}
	return active != nil, nil
}

func remainingDays(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// PaymentIntentResult is what the client needs to confirm a card payment.
type PaymentIntentResult struct {
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
}

func (s *Service) CreatePaymentIntent(ctx context.Context, userID, questionSetID int64) (*PaymentIntentResult, error) {
	qs, err := s.getSet(ctx, questionSetID)
	if err != nil {
		return nil, err
	}
	if !qs.IsPaid {
		return nil, ErrNotPaidSet
	}

	intent, err := s.Provider.CreateIntent(ctx, toCents(qs.Price), currency, map[string]string{
		"user_id":         fmt.Sprintf("%d", userID),
		"question_set_id": fmt.Sprintf("%d", questionSetID),
	})
	if err != nil {
		metrics.PaymentIntentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.PaymentIntentsTotal.WithLabelValues("created").Inc()
	return &PaymentIntentResult{
		ClientSecret: intent.ClientSecret,
		Amount:       qs.Price,
	}, nil
}

func toCents(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).IntPart()
}

// Complete records a verified gateway payment as a six month entitlement.
// A replayed callback with a known transaction ID is a no-op returning the
// existing purchase; the same reference arriving for a different user or set
// fails with ErrDuplicateTransaction.
func (s *Service) Complete(ctx context.Context, userID, questionSetID int64, paymentIntentID string) (*purchase.Purchase, error) {
	qs, err := s.getSet(ctx, questionSetID)
	if err != nil {
		return nil, err
	}

	intent, err := s.Provider.GetIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payment.StatusSucceeded {
		return nil, ErrPaymentNotCompleted
	}
	if intent.Amount != toCents(qs.Price) {
		return nil, ErrIntentMismatch
	}
	if md := intent.Metadata["question_set_id"]; md != "" && md != fmt.Sprintf("%d", questionSetID) {
		return nil, ErrIntentMismatch
	}

	now := time.Now()
	p := &purchase.Purchase{
		UserID:        userID,
		QuestionSetID: questionSetID,
		PurchaseDate:  now,
		ExpiresAt:     now.AddDate(0, paidEntitlementMonths, 0),
		TransactionID: intent.ID,
		Amount:        qs.Price,
		PaymentMethod: purchase.MethodCard,
		Status:        purchase.StatusCompleted,
	}

	if err := s.Repo.Create(ctx, p); err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		existing, getErr := s.Repo.GetByTransactionID(ctx, intent.ID)
		if getErr != nil {
			return nil, fmt.Errorf("duplicate transaction lookup failed: %w", getErr)
		}
		if existing.UserID == userID && existing.QuestionSetID == questionSetID {
			return existing, nil
		}
		return nil, ErrDuplicateTransaction
	}

	metrics.PurchasesCompletedTotal.Inc()
	return p, nil
}

// CompleteFromEvent handles a payment_intent.succeeded webhook when the
// client-side completion call never arrived. Identity comes from the intent
// metadata written at creation time.
func (s *Service) CompleteFromEvent(ctx context.Context, intent *payment.Intent) (*purchase.Purchase, error) {
	userID, err := parseMetaID(intent.Metadata, "user_id")
	if err != nil {
		return nil, err
	}
	setID, err := parseMetaID(intent.Metadata, "question_set_id")
	if err != nil {
		return nil, err
	}
	return s.Complete(ctx, userID, setID, intent.ID)
}

func parseMetaID(md map[string]string, key string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(md[key], "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("payment intent metadata missing %s", key)
	}
	return id, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*purchase.Purchase, error) {
	return s.Repo.GetByUser(ctx, userID)
}

// isUniqueViolation reports whether err is a postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
