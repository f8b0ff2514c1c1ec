package facts

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrNotConfigured is reported when no AI client is available.
	ErrNotConfigured = goerr.New("AI model is not configured")
	// ErrUpstream covers network, timeout and quota failures of the completion call.
	ErrUpstream = goerr.New("AI completion failed")
	// ErrMalformedResponse is reported when the completion could not be parsed even after recovery.
	ErrMalformedResponse = goerr.New("malformed AI response")
	// ErrArticleSource is reported when articles for the window could not be loaded.
	ErrArticleSource = goerr.New("failed to load articles")
)

// ExtractionError is returned by every failed extraction. Reason is one of the package sentinels
// and Cause carries the underlying failure, so errors.Is matches either.
type ExtractionError struct {
	Reason error
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause == nil {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Cause.Error()
}

func (e *ExtractionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newExtractionError(reason, cause error) *ExtractionError {
	return &ExtractionError{Reason: reason, Cause: cause}
}
