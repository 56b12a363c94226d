package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a time-boxed entitlement to a question set. Access holds while
// status is completed and expires_at is in the future.
type Purchase struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	QuestionSetID int64           `json:"question_set_id"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	ExpiresAt     time.Time       `json:"expires_at"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

const (
	MethodCard       = "card"
	MethodRedeemCode = "redeem_code"
)

// Access is the evaluator's answer for one (user, question set) pair.
// Field names follow the client contract.
type Access struct {
	HasAccess      bool             `json:"hasAccess"`
	IsFree         bool             `json:"isFree,omitempty"`
	ExpiryDate     *time.Time       `json:"expiryDate,omitempty"`
	RemainingDays  int              `json:"remainingDays,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	TrialQuestions *int             `json:"trialQuestions,omitempty"`
}
