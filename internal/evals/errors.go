package evals

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

// ErrInvalidState indicates the job's status does not allow the operation
type ErrInvalidState struct {
	JobID  uuid.UUID
	Status types.JobStatus
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("job %s is %s, not completed", e.JobID, e.Status)
}

// ErrValidation indicates invalid evaluation parameters
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
