// SPDX-License-Identifier: MIT

// Package errs holds the sentinel errors shared by the streaming core. Callers
// match them with errors.Is; producers wrap them with context using %w.
package errs

import "errors"

var (
	// ErrInvalidConfiguration reports bad constructor arguments such as
	// non-positive sizes or sample rates.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch reports slices whose lengths do not agree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUninitializedState reports an operation that needs prior setup.
	ErrUninitializedState = errors.New("uninitialized state")
)
