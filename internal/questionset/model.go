package questionset

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuestionSet struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	IsPaid         bool            `json:"is_paid"`
	Price          decimal.Decimal `json:"price"`
	TrialQuestions int             `json:"trial_questions"`
	QuestionCount  int             `json:"question_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Question struct {
	ID            int64    `json:"id"`
	QuestionSetID int64    `json:"question_set_id"`
	Text          string   `json:"text"`
	Explanation   string   `json:"explanation,omitempty"`
	Position      int      `json:"position"`
	Options       []Option `json:"options"`
}

type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	// Withheld (nil) when the caller only has trial access.
	IsCorrect *bool `json:"is_correct,omitempty"`
	Position  int   `json:"position"`
}
