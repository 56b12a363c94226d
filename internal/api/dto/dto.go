package dto

import "github.com/go-playground/validator/v10"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type QuestionSetRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	Category       string `json:"category" validate:"required,max=100"`
	Description    string `json:"description"`
	IsPaid         bool   `json:"is_paid"`
	Price          string `json:"price"` // decimal string, required > 0 when is_paid
	TrialQuestions int    `json:"trial_questions" validate:"min=0"`
}

type QuestionRequest struct {
	Text        string          `json:"text" validate:"required"`
	Explanation string          `json:"explanation"`
	Position    int             `json:"position" validate:"min=0"`
	Options     []OptionRequest `json:"options" validate:"required,min=2,dive"`
}

type OptionRequest struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
	Position  int    `json:"position" validate:"min=0"`
}

type CreatePurchaseRequest struct {
	QuestionSetID int64 `json:"quizId" validate:"required,gt=0"`
}

// The client may echo an amount field alongside the intent id; the charged
// amount is taken from the verified gateway intent, never from the body.
type CompletePurchaseRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	QuestionSetID   int64  `json:"quizId" validate:"required,gt=0"`
}

type RedeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type GenerateCodesRequest struct {
	QuestionSetID int64   `json:"questionSetId" validate:"required,gt=0"`
	ValidityDays  int     `json:"validityDays" validate:"required,min=1"`
	Quantity      int     `json:"quantity" validate:"required,min=1,max=100"`
	ExpiresAt     *string `json:"expiresAt"` // RFC3339, defaults to now+validityDays
}

type ProgressRequest struct {
	QuestionSetID int64 `json:"question_set_id" validate:"required,gt=0"`
	Correct       bool  `json:"correct"`
}

type ContentBlockRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	Position int    `json:"position" validate:"min=0"`
}

var Validate = validator.New()
