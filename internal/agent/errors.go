package agent

import "fmt"

// ErrorKind discriminates the LLM-level error taxonomy. The retry policy
// (internal/retry) decides disposition purely from Kind.
type ErrorKind string

const (
	KindAuthFailed      ErrorKind = "auth_failed"
	KindContextOverflow ErrorKind = "context_overflow"
	KindRateLimited     ErrorKind = "rate_limited"
	KindTimeout         ErrorKind = "timeout"
	KindConnection      ErrorKind = "connection"
	KindAPIRequest      ErrorKind = "api_request"
	KindResponseParse   ErrorKind = "response_parse"
	KindStreaming       ErrorKind = "streaming"
)

// LLMError is the structured error type returned by every Provider
// operation. Callers should use errors.As to recover it and switch on Kind.
type LLMError struct {
	Kind ErrorKind
	// RetryAfterSecs is populated only for KindRateLimited.
	RetryAfterSecs int
	// Used/Limit are populated only for KindContextOverflow.
	Used, Limit int
	// Status is the HTTP status code, when applicable.
	Status int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited: retry after %ds: %s", e.RetryAfterSecs, e.Message)
	case KindContextOverflow:
		return fmt.Sprintf("context overflow: used %d exceeds limit %d", e.Used, e.Limit)
	default:
		if e.Status != 0 {
			return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *LLMError) Unwrap() error { return e.Cause }

// Retryable reports whether this error's Kind is one of the three
// retryable kinds per spec: RateLimited, Timeout, Connection.
func (e *LLMError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindConnection:
		return true
	default:
		return false
	}
}

// NewAuthFailed constructs a terminal authentication error.
func NewAuthFailed(message string) *LLMError {
	return &LLMError{Kind: KindAuthFailed, Message: message}
}

// NewContextOverflow constructs the overflow error think() returns without
// ever calling the provider.
func NewContextOverflow(used, limit int) *LLMError {
	return &LLMError{Kind: KindContextOverflow, Used: used, Limit: limit,
		Message: fmt.Sprintf("estimated %d tokens exceeds context window %d", used, limit)}
}

// NewRateLimited constructs a retryable rate-limit error carrying the
// server's hinted wait, or a default if none/unparseable (see DESIGN.md:
// non-parseable "try again in Xs" hints fall back to 5s per spec's open
// question).
func NewRateLimited(retryAfterSecs int, message string) *LLMError {
	return &LLMError{Kind: KindRateLimited, RetryAfterSecs: retryAfterSecs, Message: message}
}

// NewTimeout constructs a retryable timeout error.
func NewTimeout(message string) *LLMError {
	return &LLMError{Kind: KindTimeout, Message: message}
}

// NewConnection constructs a retryable network-level error.
func NewConnection(message string, cause error) *LLMError {
	return &LLMError{Kind: KindConnection, Message: message, Cause: cause}
}

// NewAPIRequest constructs a terminal, non-retryable HTTP error not
// classified as auth/rate-limit.
func NewAPIRequest(status int, message string) *LLMError {
	return &LLMError{Kind: KindAPIRequest, Status: status, Message: message}
}

// NewResponseParse constructs a terminal error for a response body that
// does not match the expected shape.
func NewResponseParse(message string, cause error) *LLMError {
	return &LLMError{Kind: KindResponseParse, Message: message, Cause: cause}
}

// NewStreaming constructs a terminal error for a stream-time error event.
func NewStreaming(message string) *LLMError {
	return &LLMError{Kind: KindStreaming, Message: message}
}

// ToolErrorKind discriminates Tool-level errors, distinct from LLMError.
type ToolErrorKind string

const (
	ToolKindInvalidArguments ToolErrorKind = "invalid_arguments"
	ToolKindExecutionFailed  ToolErrorKind = "execution_failed"
	ToolKindPermissionDenied ToolErrorKind = "permission_denied"
	ToolKindTimeout          ToolErrorKind = "timeout"
	ToolKindNotFound         ToolErrorKind = "not_found"
)

// ToolError is the structured error type for Tool Registry and Tool
// execution failures.
type ToolError struct {
	Kind   ToolErrorKind
	Name   string
	Reason string
	Cause  error
}

func (e *ToolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tool %q: %s: %s", e.Name, e.Kind, e.Reason)
	}
	return fmt.Sprintf("tool %q: %s", e.Name, e.Kind)
}

func (e *ToolError) Unwrap() error { return e.Cause }

func NewInvalidArguments(name, reason string) *ToolError {
	return &ToolError{Kind: ToolKindInvalidArguments, Name: name, Reason: reason}
}

func NewExecutionFailed(name, message string, cause error) *ToolError {
	return &ToolError{Kind: ToolKindExecutionFailed, Name: name, Reason: message, Cause: cause}
}

func NewPermissionDenied(name, reason string) *ToolError {
	return &ToolError{Kind: ToolKindPermissionDenied, Name: name, Reason: reason}
}

func NewToolTimeout(name string) *ToolError {
	return &ToolError{Kind: ToolKindTimeout, Name: name}
}

func NewNotFound(name string) *ToolError {
	return &ToolError{Kind: ToolKindNotFound, Name: name, Reason: "no tool registered with this name"}
}
