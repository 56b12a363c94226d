package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examhub/internal/payment"
	"examhub/internal/purchase"
	"examhub/internal/questionset"
)

type fakePurchaseRepo struct {
	active    map[string]*purchase.Purchase // "userID/setID"
	byTxID    map[string]*purchase.Purchase
	created   []*purchase.Purchase
	createErr error
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{
		active: make(map[string]*purchase.Purchase),
		byTxID: make(map[string]*purchase.Purchase),
	}
}

func key(userID, setID int64) string {
	return fmt.Sprintf("%d/%d", userID, setID)
}

func (f *fakePurchaseRepo) GetActive(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error) {
	return f.active[key(userID, questionSetID)], nil
}

func (f *fakePurchaseRepo) GetByTransactionID(ctx context.Context, transactionID string) (*purchase.Purchase, error) {
	p, ok := f.byTxID[transactionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakePurchaseRepo) Create(ctx context.Context, p *purchase.Purchase) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, p)
	f.byTxID[p.TransactionID] = p
	return nil
}

func (f *fakePurchaseRepo) GetByUser(ctx context.Context, userID int64) ([]*purchase.Purchase, error) {
	return f.created, nil
}

type fakeSetRepo struct {
	sets map[int64]*questionset.QuestionSet
}

func (f *fakeSetRepo) GetByID(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs, ok := f.sets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return qs, nil
}

type fakeProvider struct {
	intents    map[string]*payment.Intent
	lastAmount int64
	lastMeta   map[string]string
}

func (f *fakeProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	f.lastAmount = amount
	f.lastMeta = metadata
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: amount, Currency: currency, Metadata: metadata}, nil
}

func (f *fakeProvider) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment intent")
	}
	return intent, nil
}

func paidSet(id int64, price string, trial int) *questionset.QuestionSet {
	return &questionset.QuestionSet{
		ID:             id,
		Title:          "Paid set",
		IsPaid:         true,
		Price:          decimal.RequireFromString(price),
		TrialQuestions: trial,
	}
}

func newService(repo *fakePurchaseRepo, sets map[int64]*questionset.QuestionSet, provider *fakeProvider) *Service {
	return NewService(repo, &fakeSetRepo{sets: sets}, provider)
}

func TestCheckAccess_FreeSet(t *testing.T) {
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{
		1: {ID: 1, IsPaid: false},
	}, nil)

	access, err := svc.CheckAccess(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.True(t, access.HasAccess)
	assert.True(t, access.IsFree)
	assert.Nil(t, access.ExpiryDate)
	assert.Nil(t, access.Price)
}

func TestCheckAccess_ActivePurchase(t *testing.T) {
	repo := newFakePurchaseRepo()
	expiry := time.Now().AddDate(0, 0, 100).Add(-time.Minute)
	repo.active[key(7, 1)] = &purchase.Purchase{
		UserID:        7,
		QuestionSetID: 1,
		ExpiresAt:     expiry,
		Status:        purchase.StatusCompleted,
	}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, nil)

	access, err := svc.CheckAccess(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.True(t, access.HasAccess)
	assert.False(t, access.IsFree)
	require.NotNil(t, access.ExpiryDate)
	assert.Equal(t, expiry, *access.ExpiryDate)
	assert.Equal(t, 100, access.RemainingDays, "remaining days round up")
	assert.Nil(t, access.Price)
}

func TestCheckAccess_NoEntitlement(t *testing.T) {
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, nil)

	access, err := svc.CheckAccess(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.False(t, access.HasAccess)
	require.NotNil(t, access.Price)
	assert.True(t, access.Price.Equal(decimal.RequireFromString("9.99")))
	require.NotNil(t, access.TrialQuestions)
	assert.Equal(t, 3, *access.TrialQuestions)
}

func TestCheckAccess_SetNotFound(t *testing.T) {
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{}, nil)

	_, err := svc.CheckAccess(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrSetNotFound)
}

func TestRemainingDays_RoundsUp(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 1, remainingDays(now.Add(time.Hour), now))
	assert.Equal(t, 2, remainingDays(now.Add(25*time.Hour), now))
	assert.Equal(t, 30, remainingDays(now.AddDate(0, 0, 30), now))
}

func TestCreatePaymentIntent(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	result, err := svc.CreatePaymentIntent(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.Equal(t, "pi_test_secret", result.ClientSecret)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, int64(999), provider.lastAmount, "gateway amount is in cents")
	assert.Equal(t, "7", provider.lastMeta["user_id"])
	assert.Equal(t, "1", provider.lastMeta["question_set_id"])
}

func TestCreatePaymentIntent_FreeSet(t *testing.T) {
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{
		1: {ID: 1, IsPaid: false},
	}, &fakeProvider{})

	_, err := svc.CreatePaymentIntent(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrNotPaidSet)
}

func succeededIntent(id string, amount int64, setID string) *payment.Intent {
	return &payment.Intent{
		ID:     id,
		Amount: amount,
		Status: payment.StatusSucceeded,
		Metadata: map[string]string{
			"user_id":         "7",
			"question_set_id": setID,
		},
	}
}

func TestComplete_HappyPath(t *testing.T) {
	repo := newFakePurchaseRepo()
	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": succeededIntent("pi_1", 999, "1"),
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	p, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	require.NoError(t, err)

	assert.Equal(t, purchase.StatusCompleted, p.Status)
	assert.Equal(t, purchase.MethodCard, p.PaymentMethod)
	assert.Equal(t, "pi_1", p.TransactionID)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.WithinDuration(t, time.Now().AddDate(0, 6, 0), p.ExpiresAt, time.Minute)
	require.Len(t, repo.created, 1)
}

func TestComplete_PaymentNotSucceeded(t *testing.T) {
	repo := newFakePurchaseRepo()
	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": {ID: "pi_1", Amount: 999, Status: "requires_payment_method"},
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	_, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
	assert.Empty(t, repo.created)
}

func TestComplete_AmountMismatch(t *testing.T) {
	repo := newFakePurchaseRepo()
	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": succeededIntent("pi_1", 500, "1"),
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	_, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	assert.ErrorIs(t, err, ErrIntentMismatch)
}

func TestComplete_MetadataSetMismatch(t *testing.T) {
	repo := newFakePurchaseRepo()
	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": succeededIntent("pi_1", 999, "2"),
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	_, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	assert.ErrorIs(t, err, ErrIntentMismatch)
}

func TestComplete_ReplayIsIdempotent(t *testing.T) {
	repo := newFakePurchaseRepo()
	existing := &purchase.Purchase{
		ID:            11,
		UserID:        7,
		QuestionSetID: 1,
		TransactionID: "pi_1",
		Status:        purchase.StatusCompleted,
	}
	repo.byTxID["pi_1"] = existing
	repo.createErr = &pq.Error{Code: "23505"}

	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": succeededIntent("pi_1", 999, "1"),
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	p, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	require.NoError(t, err)
	assert.Same(t, existing, p, "a replayed callback returns the recorded purchase")
	assert.Empty(t, repo.created)
}

func TestComplete_DuplicateForDifferentUser(t *testing.T) {
	repo := newFakePurchaseRepo()
	repo.byTxID["pi_1"] = &purchase.Purchase{
		ID:            11,
		UserID:        8, // someone else
		QuestionSetID: 1,
		TransactionID: "pi_1",
		Status:        purchase.StatusCompleted,
	}
	repo.createErr = &pq.Error{Code: "23505"}

	provider := &fakeProvider{intents: map[string]*payment.Intent{
		"pi_1": succeededIntent("pi_1", 999, "1"),
	}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	_, err := svc.Complete(context.Background(), 7, 1, "pi_1")
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestCompleteFromEvent(t *testing.T) {
	repo := newFakePurchaseRepo()
	intent := succeededIntent("pi_1", 999, "1")
	provider := &fakeProvider{intents: map[string]*payment.Intent{"pi_1": intent}}
	svc := newService(repo, map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, provider)

	p, err := svc.CompleteFromEvent(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, int64(1), p.QuestionSetID)
}

func TestCompleteFromEvent_MissingMetadata(t *testing.T) {
	svc := newService(newFakePurchaseRepo(), map[int64]*questionset.QuestionSet{1: paidSet(1, "9.99", 3)}, &fakeProvider{})

	_, err := svc.CompleteFromEvent(context.Background(), &payment.Intent{ID: "pi_1", Metadata: map[string]string{}})
	assert.Error(t, err)
}
