package main

import (
	"time"

	"github.com/FerroO2000/plogger/internal"
	"github.com/FerroO2000/plogger/relay"
	"github.com/caarlos0/env/v11"
)

const (
	serviceName    = "plogger"
	serviceVersion = "0.1.0"
)

// envConfig is the configuration read from the environment.
type envConfig struct {
	InputQueue       string `env:"PLOGGER_INPUT_QUEUE"       envDefault:"packager-out"`
	OutputQueue      string `env:"PLOGGER_OUTPUT_QUEUE"      envDefault:"plogger-out"`
	MaxMessageSize   int    `env:"PLOGGER_MAX_MESSAGE_SIZE"  envDefault:"256"`
	MaxMessages      int    `env:"PLOGGER_MAX_MESSAGES"      envDefault:"10"`
	OutputPath       string `env:"PLOGGER_OUTPUT"`
	SinkMode         string `env:"PLOGGER_SINK_MODE"         envDefault:"append"`
	PreservePriority bool   `env:"PLOGGER_PRESERVE_PRIORITY" envDefault:"true"`

	LogLevel string `env:"PLOGGER_LOG_LEVEL" envDefault:"info"`

	OTelEndpoint       string        `env:"PLOGGER_OTEL_ENDPOINT"`
	OTelLogEndpoint    string        `env:"PLOGGER_OTEL_LOG_ENDPOINT"`
	OTelTraceRatio     float64       `env:"PLOGGER_TRACE_RATIO"     envDefault:"0.05"`
	OTelMetricInterval time.Duration `env:"PLOGGER_METRIC_INTERVAL" envDefault:"10s"`
}

// loadEnvConfig parses the environment. A nil environment selects the process one.
func loadEnvConfig(environment map[string]string) (*envConfig, error) {
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}

	cfg, err := env.ParseAsWithOptions[envConfig](opts)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (ec *envConfig) relayConfig() *relay.Config {
	cfg := relay.NewConfig()

	cfg.InputQueue = ec.InputQueue
	cfg.OutputQueue = ec.OutputQueue
	cfg.MaxMessageSize = ec.MaxMessageSize
	cfg.MaxMessages = ec.MaxMessages
	cfg.OutputPath = ec.OutputPath
	cfg.SinkMode = relay.SinkMode(ec.SinkMode)
	cfg.PreservePriority = ec.PreservePriority

	return cfg
}

func (ec *envConfig) otelConfig() *internal.OTelConfig {
	return &internal.OTelConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,

		Endpoint:    ec.OTelEndpoint,
		LogEndpoint: ec.OTelLogEndpoint,

		TraceRatio:     ec.OTelTraceRatio,
		MetricInterval: ec.OTelMetricInterval,
	}
}
