package relay

import (
	"github.com/FerroO2000/plogger/connector"
	"github.com/FerroO2000/plogger/internal/config"
)

// SinkMode states how an existing log file is opened.
type SinkMode string

const (
	// SinkModeAppend appends the payloads to the existing content.
	SinkModeAppend SinkMode = "append"
	// SinkModeTruncate discards the existing content.
	SinkModeTruncate SinkMode = "truncate"
)

// Default values for the relay configuration.
const (
	DefaultInputQueue       = "packager-out"
	DefaultOutputQueue      = "plogger-out"
	DefaultMaxMessageSize   = connector.DefaultQueueMessageSize
	DefaultMaxMessages      = connector.DefaultQueueMaxMessages
	DefaultOutputQueuePerm  = connector.DefaultQueuePerm
	DefaultSinkMode         = SinkModeAppend
	DefaultPreservePriority = true
)

// Config contains the configuration of the relay stage.
type Config struct {
	// InputQueue is the name of the queue the messages are received from.
	// The queue must already exist.
	//
	// Default: "packager-out"
	InputQueue string

	// OutputQueue is the name of the queue the messages are forwarded to.
	// It is created if it does not exist.
	//
	// Default: "plogger-out"
	OutputQueue string

	// MaxMessageSize is the maximum size of a payload.
	//
	// Default: 256
	MaxMessageSize int

	// MaxMessages is the capacity of the output queue.
	//
	// Default: 10
	MaxMessages int

	// OutputQueuePerm are the permission bits of the output queue
	// when it is created by the relay.
	//
	// Default: 0644
	OutputQueuePerm uint32

	// OutputPath is the path of the log file.
	// When empty, payloads are written to the standard output.
	OutputPath string

	// SinkMode states whether the log file is appended to or truncated.
	//
	// Default: "append"
	SinkMode SinkMode

	// PreservePriority states whether the priority of the received messages
	// is kept when forwarding. When false, messages are forwarded at priority 0.
	//
	// Default: true
	PreservePriority bool
}

// NewConfig returns the default configuration for the relay stage.
func NewConfig() *Config {
	return &Config{
		InputQueue:       DefaultInputQueue,
		OutputQueue:      DefaultOutputQueue,
		MaxMessageSize:   DefaultMaxMessageSize,
		MaxMessages:      DefaultMaxMessages,
		OutputQueuePerm:  DefaultOutputQueuePerm,
		SinkMode:         DefaultSinkMode,
		PreservePriority: DefaultPreservePriority,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	config.CheckNotEmpty(ac, "InputQueue", &c.InputQueue, DefaultInputQueue)
	config.CheckNotEmpty(ac, "OutputQueue", &c.OutputQueue, DefaultOutputQueue)

	config.CheckPositive(ac, "MaxMessageSize", &c.MaxMessageSize, DefaultMaxMessageSize)
	config.CheckPositive(ac, "MaxMessages", &c.MaxMessages, DefaultMaxMessages)

	config.CheckNotGreater(ac, "OutputQueuePerm", &c.OutputQueuePerm, 0o777)

	config.CheckOneOf(ac, "SinkMode", &c.SinkMode, []SinkMode{SinkModeAppend, SinkModeTruncate}, DefaultSinkMode)
}

func (c *Config) outputQueueOptions() *connector.QueueOptions {
	opts := connector.NewQueueOptions(c.OutputQueue)
	opts.MaxMessages = c.MaxMessages
	opts.MessageSize = c.MaxMessageSize
	opts.Perm = c.OutputQueuePerm
	return opts
}
