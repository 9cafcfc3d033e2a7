package service

import "fmt"

const (
	StageEmbed   = "embed"
	StagePersist = "persist"
)

// BatchError names the batch an ingestion stopped at. Batch is 1-based.
// Committed counts passages persisted before the failure.
type BatchError struct {
	Stage     string
	Batch     int
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch %d failed (%d passages committed): %v", e.Stage, e.Batch, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
