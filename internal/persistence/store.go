// Package persistence adapts the teacher's pluggable chat-store pattern
// (in-memory / Redis / Postgres behind one interface) to back
// conversation.Store's optional Persistence hook with a durable backend.
package persistence

import "errors"

// ErrNotFound mirrors the teacher's persistence.ErrNotFound sentinel.
var ErrNotFound = errors.New("persistence: not found")
