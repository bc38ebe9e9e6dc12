// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrConsumerTaken indicates the single consumer handle was already handed out
	ErrConsumerTaken = errors.New("queue consumer already taken")
)
