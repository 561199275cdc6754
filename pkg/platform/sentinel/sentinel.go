// Package sentinel holds the storage-level errors shared by every store.
// Services translate them into domain errors; handlers never see them.
package sentinel

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write, such as a
	// second document with the same file hash or a second active key pair.
	ErrConflict = errors.New("conflict")
)
