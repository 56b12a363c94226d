package progress

import "time"

// Progress is a per-user per-question-set completion counter. Derived
// convenience data; entitlement decisions never read it.
type Progress struct {
	UserID             int64     `json:"user_id"`
	QuestionSetID      int64     `json:"question_set_id"`
	CompletedQuestions int       `json:"completed_questions"`
	CorrectAnswers     int       `json:"correct_answers"`
	LastActivity       time.Time `json:"last_activity"`

	QuestionSetTitle string `json:"question_set_title,omitempty"`
}
