package session

import "errors"

// History window constraints.
const (
	// DefaultWindow is the number of trailing exchanges returned when the
	// caller passes a non-positive window.
	DefaultWindow int32 = 2

	// MaxWindow is the absolute maximum window to bound memory use.
	MaxWindow int32 = 50
)

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID indicates the session identifier is not a valid UUID.
	ErrInvalidSessionID = errors.New("invalid session ID")
)

// NormalizeWindow clamps a history window to its valid range.
// Non-positive values fall back to DefaultWindow.
func NormalizeWindow(window int32) int32 {
	if window <= 0 {
		return DefaultWindow
	}
	if window > MaxWindow {
		return MaxWindow
	}
	return window
}
