// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the poller: an unbounded
// multi-producer/single-consumer queue whose consumer can block with a
// deadline and a context.
package concurrency
