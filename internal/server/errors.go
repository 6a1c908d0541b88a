// Package server provides the HTTP REST API for the content generation
// pipeline.
package server

import (
	"errors"
	"net/http"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/evals"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/jobs"
)

// HTTPStatus returns the appropriate HTTP status code for a service error
func HTTPStatus(err error) int {
	var (
		jobNotFound    *jobs.ErrJobNotFound
		jobConflict    *jobs.ErrJobConflict
		jobValidation  *jobs.ErrValidation
		evalNotFound   *evals.ErrJobNotFound
		evalState      *evals.ErrInvalidState
		evalValidation *evals.ErrValidation
	)
	switch {
	case errors.As(err, &jobNotFound), errors.As(err, &evalNotFound):
		return http.StatusNotFound
	case errors.As(err, &jobConflict), errors.As(err, &evalState):
		return http.StatusConflict
	case errors.As(err, &jobValidation), errors.As(err, &evalValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
