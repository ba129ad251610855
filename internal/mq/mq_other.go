//go:build !linux

package mq

import (
	"context"
	"errors"
)

// Open flags, mirroring the Linux values.
const (
	ReadOnly  = 0x0
	WriteOnly = 0x1
	ReadWrite = 0x2
	Create    = 0x40
	Exclusive = 0x80
	NonBlock  = 0x800
)

// Queue is unavailable outside of Linux.
type Queue struct{}

// Open always fails with errors.ErrUnsupported.
func Open(name string, _ int, _ uint32, _ *Attr) (*Queue, error) {
	if _, err := normalizeName(name); err != nil {
		return nil, err
	}
	return nil, errors.ErrUnsupported
}

// Name returns an empty string.
func (q *Queue) Name() string { return "" }

// Attr always fails with errors.ErrUnsupported.
func (q *Queue) Attr() (Attr, error) { return Attr{}, errors.ErrUnsupported }

// Send always fails with errors.ErrUnsupported.
func (q *Queue) Send(_ []byte, _ uint) error { return errors.ErrUnsupported }

// Receive always fails with errors.ErrUnsupported.
func (q *Queue) Receive(_ context.Context, _ []byte) (int, uint, error) {
	return 0, 0, errors.ErrUnsupported
}

// Close does nothing.
func (q *Queue) Close() error { return nil }

// Unlink always fails with errors.ErrUnsupported.
func Unlink(_ string) error { return errors.ErrUnsupported }
