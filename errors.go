package tether

import "errors"

var (
	// ErrTransportNotReady is returned when publishing or subscribing before
	// the broker accepted the session.
	ErrTransportNotReady = errors.New("transport not ready")
	// ErrNotSender is returned when publishing through a receiver definition.
	ErrNotSender = errors.New("definition is not a sender")
	// ErrNotReceiver is returned when a typed receiver wraps a sender definition.
	ErrNotReceiver = errors.New("definition is not a receiver")
	// ErrConnectTimeout is returned when the broker did not accept the session in time.
	ErrConnectTimeout = errors.New("timed out waiting for the broker to accept the session")
	// ErrInvalidRole is returned for an empty role or one containing a separator.
	ErrInvalidRole = errors.New("invalid role")
)
