package transport

import "errors"

var (
	// ErrNotConnected is returned when sending without an active connection
	ErrNotConnected = errors.New("transport: not connected")
	// ErrSendQueueFull is returned when the outbound buffer is full
	ErrSendQueueFull = errors.New("transport: send queue full")
	ErrNoServerURL   = errors.New("transport: server url is required")
)
