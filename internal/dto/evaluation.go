package dto

// EvaluationTrigger starts one evaluation workflow run. The payload is
// schema-validated on entry; a missing or misnamed field is rejected with an
// explicit error rather than treated as absent.
type EvaluationTrigger struct {
	LinkID         string `json:"linkId" binding:"required,max=32" validate:"required,max=32"`
	DestinationURL string `json:"destinationUrl" binding:"required,url" validate:"required,url"`
	AccountID      string `json:"accountId" binding:"required,max=64" validate:"required,max=64"`
}
