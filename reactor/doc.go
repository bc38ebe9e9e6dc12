// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor binds api.Reactor to the OS readiness notifier: epoll on
// Linux, kqueue on Darwin and FreeBSD. Every Register arms exactly one
// one-shot notification; a background goroutine translates OS events into
// api.EventType sets and hands them to the registered callback.
package reactor
