package connector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"

	"github.com/FerroO2000/plogger/internal/mq"
)

var (
	_ Source      = (*Queue)(nil)
	_ Destination = (*Queue)(nil)
)

// Default values for the queue options.
const (
	DefaultQueueMaxMessages = 10
	DefaultQueueMessageSize = 256
	DefaultQueuePerm        = 0o644
)

// QueueOptions contains the options used to create a queue.
type QueueOptions struct {
	// Name is the well-known name of the queue.
	Name string

	// MaxMessages is the maximum number of pending messages.
	//
	// Default: 10 (the default fs.mqueue.msg_max)
	MaxMessages int

	// MessageSize is the maximum size of a single message.
	//
	// Default: 256
	MessageSize int

	// Perm are the permission bits of the queue, if it is created.
	//
	// Default: 0644
	Perm uint32
}

// NewQueueOptions returns the default options for the named queue.
func NewQueueOptions(name string) *QueueOptions {
	return &QueueOptions{
		Name:        name,
		MaxMessages: DefaultQueueMaxMessages,
		MessageSize: DefaultQueueMessageSize,
		Perm:        DefaultQueuePerm,
	}
}

// Queue is a connector backed by a POSIX message queue.
type Queue struct {
	q *mq.Queue

	messageSize int

	closed atomic.Bool
}

// AttachQueue opens an existing queue in read-only mode.
// The queue is owned by the stage that created it.
func AttachQueue(name string) (*Queue, error) {
	q, err := mq.Open(name, mq.ReadOnly, 0, nil)
	if err != nil {
		return nil, err
	}

	return newQueue(q)
}

// CreateQueue opens the queue for writing, creating it if it does not exist.
// Sends are non-blocking: a full queue makes Send return ErrWouldBlock.
func CreateQueue(opts *QueueOptions) (*Queue, error) {
	attr := &mq.Attr{
		MaxMessages: opts.MaxMessages,
		MessageSize: opts.MessageSize,
	}

	q, err := mq.Open(opts.Name, mq.ReadWrite|mq.Create|mq.NonBlock, opts.Perm, attr)
	if err != nil {
		return nil, err
	}

	return newQueue(q)
}

func newQueue(q *mq.Queue) (*Queue, error) {
	attr, err := q.Attr()
	if err != nil {
		q.Close()
		return nil, err
	}

	return &Queue{
		q: q,

		messageSize: attr.MessageSize,
	}, nil
}

// Name returns the name of the queue.
func (qc *Queue) Name() string {
	return qc.q.Name()
}

// MessageSize returns the message size of the queue.
// It may differ from the requested one when the queue already existed.
func (qc *Queue) MessageSize() int {
	return qc.messageSize
}

// Receive waits for the next message.
// If the context is done, the context error is returned.
func (qc *Queue) Receive(ctx context.Context, buf []byte) (int, uint, error) {
	if qc.closed.Load() {
		return 0, 0, ErrClosed
	}

	n, prio, err := qc.q.Receive(ctx, buf)
	if err != nil {
		return 0, 0, qc.mapErr(err)
	}

	return n, prio, nil
}

// Send sends the payload without blocking.
func (qc *Queue) Send(payload []byte, priority uint) error {
	if qc.closed.Load() {
		return ErrClosed
	}

	return qc.mapErr(qc.q.Send(payload, priority))
}

func (qc *Queue) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.EAGAIN):
		return fmt.Errorf("%w: %w", ErrWouldBlock, err)
	case errors.Is(err, syscall.EBADF):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return err
	}
}

// Close closes the connector. The queue is not unlinked.
func (qc *Queue) Close() error {
	if qc.closed.Swap(true) {
		return nil
	}

	return qc.q.Close()
}
