package conversation

import "errors"

// ErrNotFound is returned by operations that address a conversation by id
// that does not exist in the store.
var ErrNotFound = errors.New("conversation not found")
