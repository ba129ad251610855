//go:build linux

package mq

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open flags.
const (
	ReadOnly  = unix.O_RDONLY
	WriteOnly = unix.O_WRONLY
	ReadWrite = unix.O_RDWR
	Create    = unix.O_CREAT
	Exclusive = unix.O_EXCL
	NonBlock  = unix.O_NONBLOCK
)

// kernel struct mq_attr, every field is a C long
type kernelAttr struct {
	flags    int
	maxMsg   int
	msgSize  int
	curMsgs  int
	reserved [4]int
}

func (ka *kernelAttr) toAttr() Attr {
	return Attr{
		Flags:           ka.flags,
		MaxMessages:     ka.maxMsg,
		MessageSize:     ka.msgSize,
		CurrentMessages: ka.curMsgs,
	}
}

// Queue is an open POSIX message queue descriptor.
type Queue struct {
	name string

	fd     int
	wakeFd int

	closeOnce sync.Once
	closeErr  error
}

// Open opens (and with O_CREAT creates) the named queue.
// flag is one of ReadOnly, WriteOnly or ReadWrite, optionally combined
// with Create, Exclusive and NonBlock. perm and attr are only used on creation,
// a nil attr selects the system defaults.
func Open(name string, flag int, perm uint32, attr *Attr) (*Queue, error) {
	bare, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	namePtr, err := unix.BytePtrFromString(bare)
	if err != nil {
		return nil, fmt.Errorf("mq_open %q: %w", name, err)
	}

	var attrPtr *kernelAttr
	if attr != nil {
		attrPtr = &kernelAttr{
			maxMsg:  attr.MaxMessages,
			msgSize: attr.MessageSize,
		}
	}

	fd, _, errno := unix.Syscall6(
		unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(flag|unix.O_CLOEXEC),
		uintptr(perm),
		uintptr(unsafe.Pointer(attrPtr)),
		0, 0,
	)
	if errno != 0 {
		return nil, fmt.Errorf("mq_open %q: %w", name, errno)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(int(fd))
		return nil, fmt.Errorf("eventfd for %q: %w", name, err)
	}

	return &Queue{
		name: name,

		fd:     int(fd),
		wakeFd: wakeFd,
	}, nil
}

// Name returns the name the queue was opened with.
func (q *Queue) Name() string {
	return q.name
}

// Attr returns the current attributes of the queue.
func (q *Queue) Attr() (Attr, error) {
	var ka kernelAttr

	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR, uintptr(q.fd), 0, uintptr(unsafe.Pointer(&ka)))
	if errno != 0 {
		return Attr{}, fmt.Errorf("mq_getsetattr %q: %w", q.name, errno)
	}

	return ka.toAttr(), nil
}

// Send enqueues payload with the given priority.
// On a non-blocking queue that is full it returns unix.EAGAIN.
func (q *Queue) Send(payload []byte, priority uint) error {
	if priority >= MaxPriority {
		return fmt.Errorf("mq_timedsend %q: priority %d: %w", q.name, priority, unix.EINVAL)
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDSEND,
		uintptr(q.fd),
		uintptr(unsafe.Pointer(unsafe.SliceData(payload))),
		uintptr(len(payload)),
		uintptr(priority),
		0, 0,
	)
	if errno != 0 {
		return fmt.Errorf("mq_timedsend %q: %w", q.name, errno)
	}

	return nil
}

// Receive dequeues the oldest message with the highest priority into buf.
// It waits until a message is available or ctx is done; in the latter case
// ctx.Err() is returned. buf must be at least as large as the queue's message size.
func (q *Queue) Receive(ctx context.Context, buf []byte) (int, uint, error) {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	fds := make([]unix.PollFd, 2)

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		fds[0] = unix.PollFd{Fd: int32(q.fd), Events: unix.POLLIN}
		fds[1] = unix.PollFd{Fd: int32(q.wakeFd), Events: unix.POLLIN}

		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, 0, fmt.Errorf("poll %q: %w", q.name, err)
		}

		if fds[0].Revents&unix.POLLNVAL != 0 {
			return 0, 0, fmt.Errorf("poll %q: %w", q.name, unix.EBADF)
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			q.drainWake()
			continue
		}

		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		return q.receive(buf)
	}
}

func (q *Queue) receive(buf []byte) (int, uint, error) {
	var priority uint32

	n, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(q.fd),
		uintptr(unsafe.Pointer(unsafe.SliceData(buf))),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&priority)),
		0, 0,
	)
	if errno != 0 {
		return 0, 0, fmt.Errorf("mq_timedreceive %q: %w", q.name, errno)
	}

	return int(n), uint(priority), nil
}

func (q *Queue) wake() {
	var val [8]byte
	binary.NativeEndian.PutUint64(val[:], 1)

	// A full counter already wakes the poller, so the error is irrelevant
	_, _ = unix.Write(q.wakeFd, val[:])
}

func (q *Queue) drainWake() {
	var val [8]byte
	_, _ = unix.Read(q.wakeFd, val[:])
}

// Close closes the queue descriptor. The queue itself keeps existing
// until it is unlinked.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		if err := unix.Close(q.fd); err != nil {
			q.closeErr = fmt.Errorf("close %q: %w", q.name, err)
		}
		unix.Close(q.wakeFd)
	})

	return q.closeErr
}

// Unlink removes the named queue. Open descriptors stay valid.
func Unlink(name string) error {
	bare, err := normalizeName(name)
	if err != nil {
		return err
	}

	namePtr, err := unix.BytePtrFromString(bare)
	if err != nil {
		return fmt.Errorf("mq_unlink %q: %w", name, err)
	}

	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(namePtr)), 0, 0)
	if errno != 0 {
		return fmt.Errorf("mq_unlink %q: %w", name, errno)
	}

	return nil
}
