// Package core implements the Core Facade (C8): the single entry point a
// transport adapter (HTTP/gRPC/CLI) drives, composing the Persona
// Registry, Channel Registry, Conversation Store, Prompt Composer, LLM
// Dispatcher, Code Generator, and Execution Supervisor into the operation
// contract in spec.md §6.
package core

import "fmt"

// ErrKind is the language-independent error taxonomy of spec.md §7.
type ErrKind string

const (
	ErrInvalidInput    ErrKind = "invalid_input"
	ErrNotFound        ErrKind = "not_found"
	ErrPolicyViolation ErrKind = "policy_violation"
	ErrLLMUnavailable  ErrKind = "llm_unavailable"
	ErrExecutionError  ErrKind = "execution_error"
	ErrTimeout         ErrKind = "timeout"
	ErrCancelled       ErrKind = "cancelled"
	ErrInternal        ErrKind = "internal_error"
)

// Error is the facade's error type; transports map Kind to their own
// status codes.
type Error struct {
	Kind    ErrKind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func newError(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
