package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examhub/internal/purchase"
	"examhub/internal/questionset"
	"examhub/internal/redeemcode"
)

// fakeTx implements Tx in memory. The runner discards state mutations when fn
// fails, mirroring a rollback.
type fakeTx struct {
	codes    map[string]*redeemcode.RedeemCode
	sets     map[int64]*questionset.QuestionSet
	active   map[int64]*purchase.Purchase // keyed by userID, one set per test
	created  []*purchase.Purchase
	updated  map[int64]time.Time
	markUsed int
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		codes:   make(map[string]*redeemcode.RedeemCode),
		sets:    make(map[int64]*questionset.QuestionSet),
		active:  make(map[int64]*purchase.Purchase),
		updated: make(map[int64]time.Time),
	}
}

func (f *fakeTx) GetCodeForUpdate(ctx context.Context, code string) (*redeemcode.RedeemCode, error) {
	rc, ok := f.codes[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rc
	return &copied, nil
}

func (f *fakeTx) MarkUsed(ctx context.Context, codeID, userID int64, usedAt time.Time) error {
	f.markUsed++
	for _, rc := range f.codes {
		if rc.ID == codeID {
			rc.IsUsed = true
			rc.UsedBy = &userID
			at := usedAt
			rc.UsedAt = &at
		}
	}
	return nil
}

func (f *fakeTx) GetQuestionSet(ctx context.Context, id int64) (*questionset.QuestionSet, error) {
	qs, ok := f.sets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return qs, nil
}

func (f *fakeTx) GetActivePurchase(ctx context.Context, userID, questionSetID int64) (*purchase.Purchase, error) {
	p, ok := f.active[userID]
	if !ok || p.QuestionSetID != questionSetID {
		return nil, nil
	}
	return p, nil
}

func (f *fakeTx) UpdatePurchaseExpiry(ctx context.Context, purchaseID int64, expiresAt time.Time) error {
	f.updated[purchaseID] = expiresAt
	return nil
}

func (f *fakeTx) CreatePurchase(ctx context.Context, p *purchase.Purchase) error {
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, p)
	return nil
}

type fakeRunner struct {
	tx *fakeTx
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(r.tx)
}

func newTestService(tx *fakeTx) *Service {
	return &Service{Runner: &fakeRunner{tx: tx}}
}

func seedCode(tx *fakeTx, code string, setID int64, validityDays int, expiresAt time.Time) *redeemcode.RedeemCode {
	rc := &redeemcode.RedeemCode{
		ID:            int64(len(tx.codes) + 1),
		Code:          code,
		QuestionSetID: setID,
		ValidityDays:  validityDays,
		ExpiresAt:     expiresAt,
		CreatedBy:     99,
	}
	tx.codes[code] = rc
	return rc
}

func TestRedeem_HappyPath(t *testing.T) {
	tx := newFakeTx()
	tx.sets[1] = &questionset.QuestionSet{ID: 1, Title: "Algebra", IsPaid: true, Price: decimal.RequireFromString("9.99")}
	seedCode(tx, "ABC123", 1, 30, time.Now().Add(24*time.Hour))

	svc := newTestService(tx)
	result, err := svc.Redeem(context.Background(), 7, "ABC123")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.QuestionSetID)
	assert.Equal(t, 30, result.ValidityDays)
	assert.False(t, result.Extended)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), result.ExpiresAt, time.Minute)

	rc := tx.codes["ABC123"]
	assert.True(t, rc.IsUsed)
	require.NotNil(t, rc.UsedBy)
	assert.Equal(t, int64(7), *rc.UsedBy)
	assert.NotNil(t, rc.UsedAt)

	require.Len(t, tx.created, 1)
	p := tx.created[0]
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, int64(1), p.QuestionSetID)
	assert.True(t, p.Amount.IsZero())
	assert.Equal(t, purchase.MethodRedeemCode, p.PaymentMethod)
	assert.Equal(t, purchase.StatusCompleted, p.Status)
	assert.Equal(t, "redeem_ABC123", p.TransactionID)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), p.ExpiresAt, time.Minute)
}

func TestRedeem_NotFound(t *testing.T) {
	svc := newTestService(newFakeTx())

	_, err := svc.Redeem(context.Background(), 7, "NOPE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestRedeem_AlreadyUsed(t *testing.T) {
	tx := newFakeTx()
	tx.sets[1] = &questionset.QuestionSet{ID: 1}
	rc := seedCode(tx, "ABC123", 1, 30, time.Now().Add(24*time.Hour))
	rc.IsUsed = true

	svc := newTestService(tx)
	_, err := svc.Redeem(context.Background(), 8, "ABC123")
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
	assert.Empty(t, tx.created, "no purchase may be created for the loser")
	assert.Zero(t, tx.markUsed)
}

func TestRedeem_Expired(t *testing.T) {
	tx := newFakeTx()
	tx.sets[1] = &questionset.QuestionSet{ID: 1}
	seedCode(tx, "OLD999", 1, 30, time.Now().Add(-time.Hour))

	svc := newTestService(tx)
	_, err := svc.Redeem(context.Background(), 7, "OLD999")
	assert.ErrorIs(t, err, ErrCodeExpired)
	assert.False(t, tx.codes["OLD999"].IsUsed, "expired redemption must leave the code unused")
	assert.Zero(t, tx.markUsed)
	assert.Empty(t, tx.created)
}

func TestRedeem_SetMissing(t *testing.T) {
	tx := newFakeTx()
	seedCode(tx, "ABC123", 42, 30, time.Now().Add(24*time.Hour))

	svc := newTestService(tx)
	_, err := svc.Redeem(context.Background(), 7, "ABC123")
	assert.ErrorIs(t, err, ErrSetNotFound)
	assert.Zero(t, tx.markUsed)
}

func TestRedeem_ExtendsExistingEntitlement(t *testing.T) {
	tx := newFakeTx()
	tx.sets[1] = &questionset.QuestionSet{ID: 1}
	seedCode(tx, "EXT111", 1, 30, time.Now().Add(24*time.Hour))
	tx.active[7] = &purchase.Purchase{
		ID:            55,
		UserID:        7,
		QuestionSetID: 1,
		ExpiresAt:     time.Now().AddDate(0, 0, 10),
		Status:        purchase.StatusCompleted,
	}

	svc := newTestService(tx)
	result, err := svc.Redeem(context.Background(), 7, "EXT111")
	require.NoError(t, err)

	assert.True(t, result.Extended)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), result.ExpiresAt, time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), tx.updated[55], time.Minute)
	assert.Empty(t, tx.created, "extension must not create a second purchase")
}

func TestRedeem_NeverShortensEntitlement(t *testing.T) {
	tx := newFakeTx()
	tx.sets[1] = &questionset.QuestionSet{ID: 1}
	seedCode(tx, "SHORT1", 1, 30, time.Now().Add(24*time.Hour))
	longExpiry := time.Now().AddDate(0, 0, 100)
	tx.active[7] = &purchase.Purchase{
		ID:            56,
		UserID:        7,
		QuestionSetID: 1,
		ExpiresAt:     longExpiry,
		Status:        purchase.StatusCompleted,
	}

	svc := newTestService(tx)
	result, err := svc.Redeem(context.Background(), 7, "SHORT1")
	require.NoError(t, err)

	assert.Equal(t, longExpiry, result.ExpiresAt)
	_, wrote := tx.updated[56]
	assert.False(t, wrote, "a shorter grant must not touch the existing expiry")
	assert.True(t, tx.codes["SHORT1"].IsUsed, "the code is still consumed")
}

func TestCheckRedeemable_UsedBeforeExpired(t *testing.T) {
	now := time.Now()
	rc := &redeemcode.RedeemCode{IsUsed: true, ExpiresAt: now.Add(-time.Hour)}

	// A used code that also expired reports AlreadyUsed.
	assert.ErrorIs(t, checkRedeemable(rc, now), ErrCodeAlreadyUsed)
}

func TestResolveExpiry(t *testing.T) {
	now := time.Now()
	later := now.AddDate(0, 0, 100)
	sooner := now.AddDate(0, 0, 30)

	assert.Equal(t, later, resolveExpiry(later, sooner))
	assert.Equal(t, later, resolveExpiry(sooner, later))
}

type fakeCodeRepo struct {
	codes   map[int64]*redeemcode.RedeemCode
	deleted []int64
}

func (f *fakeCodeRepo) Create(ctx context.Context, rc *redeemcode.RedeemCode) error {
	rc.ID = int64(len(f.codes) + 1)
	rc.CreatedAt = time.Now()
	f.codes[rc.ID] = rc
	return nil
}

func (f *fakeCodeRepo) GetByID(ctx context.Context, id int64) (*redeemcode.RedeemCode, error) {
	rc, ok := f.codes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rc, nil
}

func (f *fakeCodeRepo) GetAll(ctx context.Context) ([]*redeemcode.RedeemCode, error) {
	var out []*redeemcode.RedeemCode
	for _, rc := range f.codes {
		out = append(out, rc)
	}
	return out, nil
}

func (f *fakeCodeRepo) Delete(ctx context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	delete(f.codes, id)
	return nil
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

func TestGenerate(t *testing.T) {
	repo := &fakeCodeRepo{codes: make(map[int64]*redeemcode.RedeemCode)}
	sets := &fakeSetRepo{sets: map[int64]*questionset.QuestionSet{1: {ID: 1}}}
	svc := NewService(repo, sets, nil)

	codes, err := svc.Generate(context.Background(), 99, 1, 30, 5, nil)
	require.NoError(t, err)
	require.Len(t, codes, 5)

	seen := make(map[string]bool)
	for _, rc := range codes {
		assert.Len(t, rc.Code, codeLength)
		for _, ch := range rc.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected character %q", ch)
		}
		assert.False(t, seen[rc.Code], "codes must be unique")
		seen[rc.Code] = true

		assert.Equal(t, int64(1), rc.QuestionSetID)
		assert.Equal(t, 30, rc.ValidityDays)
		assert.Equal(t, int64(99), rc.CreatedBy)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), rc.ExpiresAt, time.Minute)
	}
}

func TestGenerate_SetMissing(t *testing.T) {
	repo := &fakeCodeRepo{codes: make(map[int64]*redeemcode.RedeemCode)}
	sets := &fakeSetRepo{sets: map[int64]*questionset.QuestionSet{}}
	svc := NewService(repo, sets, nil)

	_, err := svc.Generate(context.Background(), 99, 1, 30, 5, nil)
	assert.ErrorIs(t, err, ErrSetNotFound)
}

func TestDelete_UsedCodeStays(t *testing.T) {
	repo := &fakeCodeRepo{codes: make(map[int64]*redeemcode.RedeemCode)}
	repo.codes[1] = &redeemcode.RedeemCode{ID: 1, Code: "USED42", IsUsed: true}
	svc := NewService(repo, nil, nil)

	err := svc.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCodeUsedDelete)
	assert.Empty(t, repo.deleted)
	assert.Contains(t, repo.codes, int64(1), "the row must remain")
}

func TestDelete_UnusedCode(t *testing.T) {
	repo := &fakeCodeRepo{codes: make(map[int64]*redeemcode.RedeemCode)}
	repo.codes[1] = &redeemcode.RedeemCode{ID: 1, Code: "FRESH1"}
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Equal(t, []int64{1}, repo.deleted)
}

func TestDelete_NotFound(t *testing.T) {
	repo := &fakeCodeRepo{codes: make(map[int64]*redeemcode.RedeemCode)}
	svc := NewService(repo, nil, nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), 5), ErrCodeNotFound)
}
