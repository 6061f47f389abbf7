// Package services defines the request-gating and memoization pipeline.
// This file centralizes the error taxonomy so that gate outcomes can be
// checked with errors.Is / errors.As by callers.
//
// Translation into user-facing text happens in messages.go; translation into
// HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTriggerMismatch marks a message that is not a trigger. It is
	// silently ignored and passed on to command processing.
	ErrTriggerMismatch = errors.New("message does not match trigger")

	// ErrUnknownPersonality is returned when the trigger names no known
	// personality.
	ErrUnknownPersonality = errors.New("unknown personality")

	// ErrGateClosed is returned by Handle after Close.
	ErrGateClosed = errors.New("gate closed")

	// ErrBackendOverload matches a *BackendError classified as a transient
	// backend-side overload.
	ErrBackendOverload = errors.New("backend overloaded")
)

// CooldownError rejects a request issued before the cooldown elapsed.
type CooldownError struct {
	// Remaining is rounded up to whole seconds and is at least one second.
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining)
}

// QuotaExceededError rejects a request once the daily limit is reached.
type QuotaExceededError struct {
	Limit   int
	ResetIn time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit %d reached: resets in %s", e.Limit, e.ResetIn.Truncate(time.Second))
}

// BackendError wraps a generation failure. Overload errors also match
// ErrBackendOverload.
type BackendError struct {
	Err      error
	Overload bool
}

func (e *BackendError) Error() string { return "backend: " + e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }

// Is reports overload classification to errors.Is.
func (e *BackendError) Is(target error) bool {
	return e.Overload && target == ErrBackendOverload
}

// StoreWriteError wraps a failed record insert. It is logged, never shown.
type StoreWriteError struct{ Err error }

func (e *StoreWriteError) Error() string { return "store write: " + e.Err.Error() }
func (e *StoreWriteError) Unwrap() error { return e.Err }

// DeliveryError wraps a failed send to the destination channel.
type DeliveryError struct {
	ChannelID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to channel %s: %v", e.ChannelID, e.Err)
}
func (e *DeliveryError) Unwrap() error { return e.Err }
