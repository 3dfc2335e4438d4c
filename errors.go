package modelgate

import "fmt"

// MissingCredentialError is returned when a provider factory requires an API
// key environment variable that is not set. It is raised before any network
// call is attempted.
type MissingCredentialError struct {
	Provider string // Provider name ("anthropic", "google", ...)
	EnvVar   string // Environment variable that was expected
}

// Error implements the error interface.
func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s not set in environment (required for provider %q)", e.EnvVar, e.Provider)
}

// SchemaValidationError is returned when model output could not be coerced to
// the requested structured-output schema. Raw carries the unparsed model
// output for diagnostics.
type SchemaValidationError struct {
	Raw string // Raw model output that failed to parse or validate
	Err error  // Underlying parse / validation error
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("structured output validation failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *SchemaValidationError) Unwrap() error { return e.Err }

// StreamInterruptedError wraps a failure that occurred after a streaming
// attempt had already delivered fragments to the consumer. The stream is
// re-opened from the beginning on retry, so consumers may observe a prefix of
// the output twice.
type StreamInterruptedError struct {
	Attempt int   // 1-based attempt number that was interrupted
	Err     error // Underlying stream error
}

// Error implements the error interface.
func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted on attempt %d: %v", e.Attempt, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StreamInterruptedError) Unwrap() error { return e.Err }
