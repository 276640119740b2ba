package service

import (
	"fmt"

	"github.com/starford/onto/internal/apperr"
	"github.com/starford/onto/internal/validator"
)

// ValidationError is returned when the commit gate rejects a write. The
// store has already been restored; Report describes the rejected state.
type ValidationError struct {
	Path   string
	Report *validator.Report
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("service: write %s rejected: %d error(s), %d warning(s)",
		e.Path, len(e.Report.Errors), len(e.Report.Warnings))
}

// Unwrap lets callers match apperr.ErrValidationFailed.
func (e *ValidationError) Unwrap() error { return apperr.ErrValidationFailed }
