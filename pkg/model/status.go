package model

// BatchStatus summarizes a batch operation across all of its items.
type BatchStatus string

const (
	StatusSucceeded BatchStatus = "succeeded"
	StatusPartial   BatchStatus = "partial"
	StatusFailed    BatchStatus = "failed"
)

// StatusOf derives the batch status from failure counts. An empty batch
// counts as succeeded.
func StatusOf(total, failed int) BatchStatus {
	switch {
	case failed == 0:
		return StatusSucceeded
	case failed == total:
		return StatusFailed
	default:
		return StatusPartial
	}
}
