// Package mq is a minimal binding of the Linux POSIX message queue syscalls.
package mq

import (
	"errors"
	"fmt"
	"strings"
)

// MaxPriority is the exclusive upper bound of a message priority (MQ_PRIO_MAX).
const MaxPriority = 32768

// ErrInvalidName is returned when a queue name is empty or contains a slash
// after the optional leading one.
var ErrInvalidName = errors.New("invalid queue name")

// Attr contains the attributes of a queue.
type Attr struct {
	// Flags is either 0 or NonBlock.
	Flags int
	// MaxMessages is the capacity of the queue.
	MaxMessages int
	// MessageSize is the maximum size in bytes of a single message.
	MessageSize int
	// CurrentMessages is the number of messages currently enqueued.
	// It is ignored when creating a queue.
	CurrentMessages int
}

// normalizeName strips the optional leading slash, since the kernel
// expects the bare name.
func normalizeName(name string) (string, error) {
	bare := strings.TrimPrefix(name, "/")
	if bare == "" || strings.Contains(bare, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return bare, nil
}
