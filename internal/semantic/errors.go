package semantic

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary mapping (CLI exit codes, JSON-RPC
// error responses, per-file recovery in the pipeline).
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindDatabase
	KindHTTP
	KindJSON
	KindConfig
	KindEmbedding
	KindVectorStore
	KindFileProcessing
	KindInvalidInput
	KindNotFound
	KindMCP
	KindEnvironmentSetup
)

// String returns the stable identifier used in errors_json and log output.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDatabase:
		return "database"
	case KindHTTP:
		return "http"
	case KindJSON:
		return "json"
	case KindConfig:
		return "config"
	case KindEmbedding:
		return "embedding"
	case KindVectorStore:
		return "vector_store"
	case KindFileProcessing:
		return "file_processing"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindMCP:
		return "mcp"
	case KindEnvironmentSetup:
		return "environment_setup"
	default:
		return "unknown"
	}
}

// Error is the structured error used across the indexing and retrieval
// stack. Message is always human readable; Hint is optional operator
// guidance shown by the CLI.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Hint    string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithHint attaches a helpful hint to the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// FormatWithHint returns the error message with the hint if available.
func (e *Error) FormatWithHint() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s\n  Hint: %s", e.Error(), e.Hint)
	}
	return e.Error()
}

// Errf creates a structured error with a formatted message.
func Errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a structured error wrapping a cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind from an error chain. Plain errors report
// KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrInvalidInput creates a validation error naming the offending argument.
func ErrInvalidInput(format string, args ...interface{}) *Error {
	return Errf(KindInvalidInput, format, args...)
}

// ErrNotFound creates an error for a missing file, directory, or chunk.
func ErrNotFound(format string, args ...interface{}) *Error {
	return Errf(KindNotFound, format, args...)
}

// ErrEnvironmentSetup creates an error for an unreachable external service.
// The message names the endpoint; the hint points at setup instructions.
func ErrEnvironmentSetup(service, endpoint string, cause error) *Error {
	e := Wrap(KindEnvironmentSetup, cause, "%s is not reachable at %s", service, endpoint)
	switch service {
	case "qdrant":
		e.Hint = "Start Qdrant or fix storage.qdrant.endpoint. See https://qdrant.tech/documentation/quickstart/"
	case "ollama":
		e.Hint = "Start the embedding server with: ollama serve. See https://ollama.com/download"
	case "openai":
		e.Hint = "Check embedding.endpoint and OPENAI_API_KEY."
	}
	return e
}

// FormatError formats an error with a hint when one is carried.
func FormatError(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.FormatWithHint()
	}
	return err.Error()
}
