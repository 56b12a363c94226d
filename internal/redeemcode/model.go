package redeemcode

import "time"

// RedeemCode is a single-use token granting a time-boxed entitlement to one
// question set. is_used flips false to true exactly once.
type RedeemCode struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	QuestionSetID int64      `json:"question_set_id"`
	ValidityDays  int        `json:"validity_days"`
	ExpiresAt     time.Time  `json:"expires_at"`
	IsUsed        bool       `json:"is_used"`
	UsedBy        *int64     `json:"used_by,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`

	// Joined for the admin listing.
	UsedByEmail      *string `json:"used_by_email,omitempty"`
	QuestionSetTitle string  `json:"question_set_title,omitempty"`
}
