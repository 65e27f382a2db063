package manager

import "errors"

// User-facing messages placed in Response.Error.
const (
	msgEmptyPrompt      = "Empty prompt"
	msgModelUnavailable = "Model not available"
	msgInitFailed       = "Model initialization failed"
	msgGenerateFailed   = "Failed to generate response"
)

// validationError signals a request that was rejected before touching the model.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// unavailableError signals that no pipeline could be obtained: a load is in
// flight (reject mode) or the load failed.
type unavailableError struct {
	reason string
	cause  error
}

func (e unavailableError) Error() string {
	if e.reason == "" {
		return msgModelUnavailable
	}
	return msgModelUnavailable + ": " + e.reason
}

func (e unavailableError) Unwrap() error { return e.cause }

// ErrUnavailable constructs an unavailableError wrapping an optional cause.
func ErrUnavailable(reason string, cause error) error {
	return unavailableError{reason: reason, cause: cause}
}

// IsUnavailable reports whether err indicates the model is not available.
func IsUnavailable(err error) bool {
	var u unavailableError
	return errors.As(err, &u)
}

// initializationError wraps a failure returned by Runtime.Load.
type initializationError struct{ cause error }

func (e initializationError) Error() string {
	if e.cause == nil || e.cause.Error() == "" {
		return msgInitFailed
	}
	return e.cause.Error()
}

func (e initializationError) Unwrap() error { return e.cause }

// IsInitialization reports whether err stems from a failed model load.
func IsInitialization(err error) bool {
	var i initializationError
	return errors.As(err, &i)
}

// generationError wraps a failure returned by Pipeline.Generate.
type generationError struct{ cause error }

func (e generationError) Error() string {
	if e.cause == nil || e.cause.Error() == "" {
		return msgGenerateFailed
	}
	return e.cause.Error()
}

func (e generationError) Unwrap() error { return e.cause }

// IsGeneration reports whether err stems from a failed generation call.
func IsGeneration(err error) bool {
	var g generationError
	return errors.As(err, &g)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama support or an unreachable inference server).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}

// modelNotFoundError is returned by runtimes when a model id has no artifact.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error when a requested model id is not cached.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var m modelNotFoundError
	return errors.As(err, &m)
}
