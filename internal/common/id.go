package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique ID for one scan run, used as the log
// correlation ID and in the failure report.
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
