package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed imports and directives.
	ErrValidation = errors.New("validation failed")
	// ErrProvider marks a failed generation call.
	ErrProvider = errors.New("generation failed")
	// ErrEmptyResponse is returned when the provider produced no candidates.
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrProvider)
	// ErrBlocked means the user can no longer be reached.
	ErrBlocked = errors.New("chat blocked")
	// ErrTransient is a retryable-in-principle transport failure.
	ErrTransient = errors.New("transient transport failure")
	// ErrFormatting means the transport rejected rich-text markup.
	ErrFormatting = errors.New("formatting rejected")
	// ErrConfig marks a missing credential or URL.
	ErrConfig = errors.New("configuration missing")
)
