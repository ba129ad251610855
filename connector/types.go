// Package connector contains the connectors linking pipeline stages
// that live in different processes.
package connector

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when the connector has been closed.
	ErrClosed = errors.New("connector closed")
	// ErrWouldBlock is returned by a non-blocking destination that is full.
	ErrWouldBlock = errors.New("connector full")
)

// Source is the receiving end of a connector.
type Source interface {
	// Receive waits for the next message and copies it into buf.
	// It returns the number of bytes and the priority of the message.
	Receive(ctx context.Context, buf []byte) (int, uint, error)
	// MessageSize returns the maximum size of a message.
	MessageSize() int
	// Close closes the source.
	Close() error
}

// Destination is the sending end of a connector.
type Destination interface {
	// Send sends the payload with the given priority.
	Send(payload []byte, priority uint) error
	// MessageSize returns the maximum size of a message.
	MessageSize() int
	// Close closes the destination.
	Close() error
}
