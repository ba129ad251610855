package relay

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Sink is the log destination of the relayed payloads.
// It is either the standard output or a file.
type Sink struct {
	name string

	writer io.Writer
	file   *os.File
}

// OpenSink opens the log sink. An empty path selects the standard output,
// otherwise the file is created if missing and appended to or truncated
// according to mode.
func OpenSink(path string, mode SinkMode) (*Sink, error) {
	if path == "" {
		return newSink("stdout", os.Stdout), nil
	}

	flag := os.O_CREATE | os.O_WRONLY
	if mode == SinkModeTruncate {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_APPEND
	}

	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	sink := newSink(path, file)
	sink.file = file

	return sink, nil
}

func newSink(name string, writer io.Writer) *Sink {
	return &Sink{
		name: name,

		writer: writer,
	}
}

// Name returns the path of the file or "stdout".
func (s *Sink) Name() string {
	return s.name
}

// Write writes the whole payload. If fewer bytes are written,
// an error wrapping ErrPartialWrite is returned.
func (s *Sink) Write(payload []byte) (int, error) {
	n, err := s.writer.Write(payload)
	if n < len(payload) {
		if err == nil {
			err = io.ErrShortWrite
		}
		return n, fmt.Errorf("%w: %d of %d bytes: %w", ErrPartialWrite, n, len(payload), err)
	}

	return n, err
}

// Close syncs and closes the log file.
// The standard output is left open.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}

	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil

	return errors.Join(syncErr, closeErr)
}
