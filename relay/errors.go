package relay

import "errors"

// Startup errors, the relay cannot run.
var (
	ErrSinkOpen    = errors.New("cannot open log sink")
	ErrQueueAttach = errors.New("cannot attach input queue")
	ErrQueueCreate = errors.New("cannot create output queue")
)

// Steady state errors, the message is affected but the relay goes on.
var (
	ErrReceive      = errors.New("failed to receive message")
	ErrPartialWrite = errors.New("partial write to log sink")
	ErrForward      = errors.New("failed to forward message")
)
