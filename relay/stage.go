// Package relay contains the relay stage. It receives the packets from the
// upstream queue, appends them to a log sink and forwards them unchanged
// to the downstream queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/FerroO2000/plogger/connector"
	"github.com/FerroO2000/plogger/internal"
	"github.com/FerroO2000/plogger/internal/config"
	"go.opentelemetry.io/otel/attribute"
)

type (
	sinkOpener   func(path string, mode SinkMode) (*Sink, error)
	inputOpener  func(name string) (connector.Source, error)
	outputOpener func(opts *connector.QueueOptions) (connector.Destination, error)
)

func attachQueue(name string) (connector.Source, error) {
	return connector.AttachQueue(name)
}

func createQueue(opts *connector.QueueOptions) (connector.Destination, error) {
	return connector.CreateQueue(opts)
}

// Stage is the relay stage.
// It handles one message at a time: receive, write to the sink, forward.
type Stage struct {
	tel *internal.Telemetry

	cfg *Config

	openSink     sinkOpener
	attachInput  inputOpener
	createOutput outputOpener

	sink   *Sink
	input  connector.Source
	output connector.Destination

	// buf is reused by every receive
	buf []byte

	metrics *metrics
}

// NewStage returns a new relay stage.
func NewStage(cfg *Config) *Stage {
	tel := internal.NewTelemetry("relay", "plogger")

	return &Stage{
		tel: tel,

		cfg: cfg,

		openSink:     OpenSink,
		attachInput:  attachQueue,
		createOutput: createQueue,

		metrics: newMetrics(tel),
	}
}

// Init validates the configuration, then opens the log sink, attaches
// the input queue and creates the output queue, in this order.
// If any of them fails, the ones already opened are released.
func (s *Stage) Init(_ context.Context) error {
	s.tel.LogInfo("initializing")

	config.NewValidator(s.tel).Validate(s.cfg)

	sink, err := s.openSink(s.cfg.OutputPath, s.cfg.SinkMode)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrSinkOpen, s.cfg.OutputPath, err)
	}
	s.sink = sink

	input, err := s.attachInput(s.cfg.InputQueue)
	if err != nil {
		s.release()
		return fmt.Errorf("%w %q: %w", ErrQueueAttach, s.cfg.InputQueue, err)
	}
	s.input = input

	output, err := s.createOutput(s.cfg.outputQueueOptions())
	if err != nil {
		s.release()

		if errors.Is(err, syscall.EINVAL) {
			return fmt.Errorf("%w %q (max_messages %d and message_size %d must not exceed fs.mqueue.msg_max and fs.mqueue.msgsize_max): %w",
				ErrQueueCreate, s.cfg.OutputQueue, s.cfg.MaxMessages, s.cfg.MaxMessageSize, err)
		}

		return fmt.Errorf("%w %q: %w", ErrQueueCreate, s.cfg.OutputQueue, err)
	}
	s.output = output

	// The kernel refuses to receive into a buffer smaller than
	// the message size of the queue
	bufSize := max(s.cfg.MaxMessageSize, input.MessageSize())
	if inSize, outSize := input.MessageSize(), output.MessageSize(); inSize > outSize {
		s.tel.LogWarn("input messages may exceed the output message size",
			"input_message_size", inSize, "output_message_size", outSize)
	}
	s.buf = make([]byte, bufSize)

	s.metrics.init()

	s.tel.LogInfo("initialized",
		"sink", s.sink.Name(), "input_queue", s.cfg.InputQueue, "output_queue", s.cfg.OutputQueue,
		"buffer_size", bufSize, "preserve_priority", s.cfg.PreservePriority)

	return nil
}

// Run runs the relay loop until the context is done.
// Failures on a single message are logged and never stop the loop.
func (s *Stage) Run(ctx context.Context) {
	s.tel.LogInfo("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, priority, err := s.input.Receive(ctx, s.buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if errors.Is(err, connector.ErrClosed) {
				s.tel.LogInfo("input connector is closed, stopping")
				return
			}

			// The message, if any, is lost
			s.metrics.incrementReceiveErrors()
			s.tel.LogError("failed to receive message", fmt.Errorf("%w: %w", ErrReceive, err),
				"queue", s.cfg.InputQueue)

			continue
		}

		if !s.cfg.PreservePriority {
			priority = 0
		}

		s.relay(ctx, s.buf[:n], priority)
	}
}

func (s *Stage) relay(ctx context.Context, payload []byte, priority uint) {
	recvTime := time.Now()

	ctx, span := s.tel.NewTrace(ctx, "relay message")
	defer span.End()

	span.SetAttributes(
		attribute.Int("payload_size", len(payload)),
		attribute.Int("priority", int(priority)),
	)

	s.metrics.addReceived(len(payload))

	s.persist(payload)
	s.forward(payload, priority)

	s.metrics.recordRelayTime(ctx, recvTime)
}

// persist writes the payload to the sink.
// A failed write never prevents the forwarding.
func (s *Stage) persist(payload []byte) {
	n, err := s.sink.Write(payload)
	s.metrics.addWrittenBytes(n)

	if err != nil {
		s.metrics.incrementWriteErrors()
		s.tel.LogError("failed to write message to sink", err, "sink", s.sink.Name())
	}
}

// forward sends the payload to the output queue without blocking.
// A full queue means that the downstream stage is slow: the message is dropped silently.
func (s *Stage) forward(payload []byte, priority uint) {
	err := s.output.Send(payload, priority)
	if err == nil {
		s.metrics.incrementForwardedMessages()
		return
	}

	if errors.Is(err, connector.ErrWouldBlock) {
		s.metrics.incrementDroppedMessages()
		return
	}

	s.metrics.incrementForwardErrors()
	s.tel.LogError("failed to forward message", fmt.Errorf("%w: %w", ErrForward, err),
		"queue", s.cfg.OutputQueue)
}

// Close closes the output queue, the input queue and the sink.
// It must not be called while Run is running.
func (s *Stage) Close() {
	s.tel.LogInfo("closing",
		"received_messages", s.metrics.receivedMessages.Load(),
		"forwarded_messages", s.metrics.forwardedMessages.Load(),
		"dropped_messages", s.metrics.droppedMessages.Load())

	s.release()
}

func (s *Stage) release() {
	if s.output != nil {
		if err := s.output.Close(); err != nil {
			s.tel.LogError("failed to close output queue", err, "queue", s.cfg.OutputQueue)
		}
		s.output = nil
	}

	if s.input != nil {
		if err := s.input.Close(); err != nil {
			s.tel.LogError("failed to close input queue", err, "queue", s.cfg.InputQueue)
		}
		s.input = nil
	}

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.tel.LogError("failed to close sink", err, "sink", s.sink.Name())
		}
		s.sink = nil
	}
}
