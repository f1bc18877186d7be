package model

import "time"

// Evaluation run states. A run advances RENDERING -> ANALYZING -> PERSISTING
// -> COMPLETED; FAILED is reachable from any step once its retries are spent.
const (
	RunStateRendering  = "RENDERING"
	RunStateAnalyzing  = "ANALYZING"
	RunStatePersisting = "PERSISTING"
	RunStateCompleted  = "COMPLETED"
	RunStateFailed     = "FAILED"
)

// Workflow step names, recorded on failure.
const (
	StepRender  = "Rendering"
	StepAnalyze = "Analyzing"
	StepPersist = "Persisting"
)

// EvaluationRun is the checkpoint record for one evaluation workflow
// instance. Step outputs are persisted incrementally so a restart resumes at
// the first step whose output is still empty instead of re-running the
// expensive render.
type EvaluationRun struct {
	RunID          string    `gorm:"primarykey;size:36" json:"runId"`
	LinkID         string    `gorm:"index;size:32;not null" json:"linkId"`
	AccountID      string    `gorm:"size:64;not null" json:"accountId"`
	DestinationURL string    `gorm:"size:2048;not null" json:"destinationUrl"`
	State          string    `gorm:"index;size:16;not null" json:"state"`
	FailedStep     string    `gorm:"size:16" json:"failedStep,omitempty"`
	RenderedText   string    `gorm:"type:longtext" json:"-"`
	Rendered       bool      `gorm:"not null;default:false" json:"rendered"`
	Status         string    `gorm:"size:32" json:"status,omitempty"`
	Reason         string    `gorm:"type:text" json:"reason,omitempty"`
	EvaluationID   string    `gorm:"size:36" json:"evaluationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (EvaluationRun) TableName() string {
	return "evaluation_runs"
}

// Terminal reports whether the run reached an observable end state.
func (r *EvaluationRun) Terminal() bool {
	return r.State == RunStateCompleted || r.State == RunStateFailed
}
