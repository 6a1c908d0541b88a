package jobs

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// ErrJobNotFound indicates the job does not exist
type ErrJobNotFound struct {
	JobID uuid.UUID
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrJobConflict indicates the requested transition is invalid for the job's
// current status
type ErrJobConflict struct {
	JobID  uuid.UUID
	Status types.JobStatus
}

func (e *ErrJobConflict) Error() string {
	return fmt.Sprintf("job %s is already %s", e.JobID, e.Status)
}

// ErrValidation indicates invalid job parameters
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
