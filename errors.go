package backstop

import (
	"errors"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------.

// Kind discriminates the AppError subtypes. It is a closed tagged union:
// FormatForUI switches exhaustively over it, so new kinds must be added to
// that switch as well.
type Kind int

const (
	// KindGeneric is an unclassified application error.
	KindGeneric Kind = iota
	// KindAPI covers errors from remote API calls.
	KindAPI
	// KindValidation covers field-level input validation errors.
	KindValidation
	// KindStorage covers local persistence errors.
	KindStorage
	// KindStream covers streaming transport errors.
	KindStream
	// KindWorkflow covers step-scoped workflow execution errors.
	KindWorkflow
)

// String returns the kind as a human-readable string.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindStream:
		return "stream"
	case KindWorkflow:
		return "workflow"
	default:
		return "generic"
	}
}

// Code enumerates the error kinds used for classification and user-message
// lookup. The set is closed; UNKNOWN is the fallback for unclassified
// native errors.
type Code string

// API error codes.
const (
	CodeNetwork        Code = "NETWORK_ERROR"
	CodeTimeout        Code = "TIMEOUT"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeAuthentication Code = "AUTHENTICATION_FAILED"
	CodeAuthorization  Code = "AUTHORIZATION_FAILED"
	CodeQuotaExceeded  Code = "QUOTA_EXCEEDED"
	CodeServerError    Code = "SERVER_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
)

// Validation error codes.
const (
	CodeValidation Code = "VALIDATION_FAILED"
)

// Storage error codes.
const (
	CodeStorageQuota   Code = "STORAGE_QUOTA_EXCEEDED"
	CodeStorageRead    Code = "STORAGE_READ_ERROR"
	CodeStorageWrite   Code = "STORAGE_WRITE_ERROR"
	CodeStorageCorrupt Code = "STORAGE_CORRUPTED"
)

// Stream error codes.
const (
	CodeStreamConnection  Code = "STREAM_CONNECTION_ERROR"
	CodeStreamTimeout     Code = "STREAM_TIMEOUT"
	CodeStreamInterrupted Code = "STREAM_INTERRUPTED"
)

// Workflow error codes.
const (
	CodeWorkflowStep Code = "WORKFLOW_STEP_FAILED"
)

// CodeUnknown is the fallback code for unclassified errors.
const CodeUnknown Code = "UNKNOWN"

// Severity ranks an error's impact for logging and alerting. It is advisory
// metadata only: retry decisions never consult it.
type Severity int

const (
	// SeverityLow is a recoverable nuisance.
	SeverityLow Severity = iota
	// SeverityMedium is the default for unclassified errors.
	SeverityMedium
	// SeverityHigh indicates degraded functionality.
	SeverityHigh
	// SeverityCritical indicates the operation cannot proceed at all.
	SeverityCritical
)

// String returns the severity as a human-readable string.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "medium"
	}
}

// AppError is the typed error value at the center of the taxonomy. Every
// error surfaced by this package out of an operation boundary is an
// *AppError; raw errors are normalized via [Normalize] before being logged
// or classified.
type AppError struct {
	// Context is an opaque key-value bag for diagnostic metadata. It is
	// merged, not replaced, when the same error passes through
	// Handler.Handle more than once.
	Context map[string]any
	// Cause is the wrapped lower-level error, exposed via Unwrap.
	Cause error
	// Message is the human-readable description for logs.
	Message string
	// UserMessage is an optional pre-rendered user-facing string. When
	// empty, one is derived from Code by FormatForUI.
	UserMessage string
	// Field names the offending field for validation errors.
	Field string
	// Step names the failing step for workflow errors.
	Step string
	// Code classifies the error within the closed taxonomy.
	Code Code
	// Timestamp is the creation instant.
	Timestamp time.Time
	// Status is the HTTP status for API errors, 0 otherwise.
	Status int
	// Kind is the subtype discriminator.
	Kind Kind
	// Severity ranks impact for logging and alerting.
	Severity Severity
	// Retryable reports whether the retry engine's default predicate
	// should retry this error.
	Retryable bool
}

// Error returns the log-oriented description.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}

	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error { return e.Cause }

// WithContext returns e with the given key set in its context bag.
// The receiver is mutated and returned for chaining.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}

	e.Context[key] = value

	return e
}

// ---------------------------------------------------------------------------
// Option-based constructors
// ---------------------------------------------------------------------------.

// ErrorOption customises an AppError under construction.
type ErrorOption func(*AppError)

// WithSeverity sets the error's severity.
func WithSeverity(s Severity) ErrorOption {
	return func(e *AppError) { e.Severity = s }
}

// WithRetryable overrides the code's default retryability.
func WithRetryable(retryable bool) ErrorOption {
	return func(e *AppError) { e.Retryable = retryable }
}

// WithUserMessage sets a pre-rendered user-facing message.
func WithUserMessage(msg string) ErrorOption {
	return func(e *AppError) { e.UserMessage = msg }
}

// WithCause attaches a wrapped lower-level error.
func WithCause(cause error) ErrorOption {
	return func(e *AppError) { e.Cause = cause }
}

// WithStatus records the HTTP status for API errors.
func WithStatus(status int) ErrorOption {
	return func(e *AppError) { e.Status = status }
}

// NewError creates a generic AppError with the given code and message.
// Severity and retryability default from the code via [defaultsForCode].
func NewError(code Code, message string, opts ...ErrorOption) *AppError {
	e := &AppError{
		Kind:      KindGeneric,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
	e.Severity, e.Retryable = defaultsForCode(code)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewAPIError creates an API-kind error.
func NewAPIError(code Code, message string, opts ...ErrorOption) *AppError {
	e := NewError(code, message, opts...)
	e.Kind = KindAPI

	return e
}

// NewValidationError creates a field-scoped validation error. Validation
// errors are never retryable: re-running the operation cannot fix bad input.
func NewValidationError(field, message string, opts ...ErrorOption) *AppError {
	e := NewError(CodeValidation, message, opts...)
	e.Kind = KindValidation
	e.Field = field

	return e
}

// NewStorageError creates a storage-kind error.
func NewStorageError(code Code, message string, opts ...ErrorOption) *AppError {
	e := NewError(code, message, opts...)
	e.Kind = KindStorage

	return e
}

// NewStreamError creates a stream-kind error.
func NewStreamError(code Code, message string, opts ...ErrorOption) *AppError {
	e := NewError(code, message, opts...)
	e.Kind = KindStream

	return e
}

// NewWorkflowError creates a step-scoped workflow error.
func NewWorkflowError(step, message string, opts ...ErrorOption) *AppError {
	e := NewError(CodeWorkflowStep, message, opts...)
	e.Kind = KindWorkflow
	e.Step = step

	return e
}

// defaultsForCode returns the default severity and retryability for a code.
func defaultsForCode(code Code) (Severity, bool) {
	switch code {
	case CodeNetwork, CodeTimeout, CodeStreamTimeout, CodeStreamConnection:
		return SeverityMedium, true
	case CodeRateLimited, CodeServerError, CodeStreamInterrupted:
		return SeverityHigh, true
	case CodeAuthentication, CodeAuthorization:
		return SeverityHigh, false
	case CodeQuotaExceeded, CodeStorageQuota:
		return SeverityHigh, false
	case CodeStorageCorrupt:
		return SeverityCritical, false
	case CodeStorageRead, CodeStorageWrite:
		return SeverityMedium, true
	case CodeNotFound, CodeValidation:
		return SeverityLow, false
	case CodeWorkflowStep:
		return SeverityMedium, false
	default:
		return SeverityMedium, false
	}
}

// ---------------------------------------------------------------------------
// Normalization and classification
// ---------------------------------------------------------------------------.

// AsAppError extracts an *AppError from err's chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}

	return nil, false
}

// Normalize coerces any error into an *AppError. Typed errors pass through
// unchanged; untyped errors are wrapped as UNKNOWN with medium severity and
// retryable false. Normalize(nil) returns nil.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	if ae, ok := AsAppError(err); ok {
		return ae
	}

	return &AppError{
		Kind:      KindGeneric,
		Code:      CodeUnknown,
		Severity:  SeverityMedium,
		Retryable: false,
		Message:   err.Error(),
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// retryHints are message substrings that mark an untyped error as retryable.
// Message sniffing is fragile and locale-dependent; it exists only as a last
// resort for errors that never passed through the taxonomy. Classified
// errors should set Retryable explicitly.
var retryHints = []string{"network", "timeout", "econnrefused", "econnreset"}

// IsRetryable reports whether the retry engine's default predicate should
// retry err. Typed errors answer with their Retryable flag; untyped errors
// fall back to the message-substring heuristic. Returns false for nil.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if ae, ok := AsAppError(err); ok {
		return ae.Retryable
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range retryHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}

	return false
}
