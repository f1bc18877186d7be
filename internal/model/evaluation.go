package model

import "time"

// Evaluation statuses the classifier is prompted to emit.
const (
	EvaluationStatusAvailable    = "AVAILABLE"
	EvaluationStatusNotAvailable = "NOT_AVAILABLE"
	EvaluationStatusUnknown      = "UNKNOWN"
)

// Evaluation is one append-only destination evaluation outcome. A link may be
// evaluated many times, so the row carries its own identifier.
type Evaluation struct {
	ID             string    `gorm:"primarykey;size:36" json:"id"`
	LinkID         string    `gorm:"index;size:32;not null" json:"linkId"`
	AccountID      string    `gorm:"index:idx_eval_account_created;size:64;not null" json:"accountId"`
	DestinationURL string    `gorm:"size:2048;not null" json:"destinationUrl"`
	Status         string    `gorm:"size:32;not null" json:"status"`
	Reason         string    `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time `gorm:"index:idx_eval_account_created" json:"createdAt"`
}

func (Evaluation) TableName() string {
	return "destination_evaluations"
}
