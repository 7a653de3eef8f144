// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts defines the error type for precondition failures that
// abort an entire ledger operation.
package reverts

import (
	"errors"
	"fmt"
)

// ErrRevert marks an operation-aborting failure. An operation that
// returns it has left no state change behind.
type ErrRevert struct {
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{
		message: message,
	}
}

func Newf(format string, args ...any) *ErrRevert {
	return &ErrRevert{
		message: fmt.Sprintf(format, args...),
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// IsRevert reports whether err is (or wraps) a revert.
func IsRevert(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}
