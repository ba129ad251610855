// plogger is the packet logger stage of the telemetry pipeline.
//
// It receives the packets produced by the packager from the "packager-out"
// POSIX message queue, appends them to stdout or to a file, and forwards
// them unchanged to the "plogger-out" queue read by the broadcaster.
// The queues and the other settings can be changed with PLOGGER_*
// environment variables.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FerroO2000/plogger"
	"github.com/FerroO2000/plogger/internal"
	"github.com/FerroO2000/plogger/relay"
	"github.com/lmittmann/tint"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	if flags.help {
		return exitOK
	}

	// A closed stdout must fail the sink writes, not kill the relay
	signal.Ignore(syscall.SIGPIPE)

	slog.SetDefault(slog.New(internal.NewLogHandler(stderr, slog.LevelInfo)))

	envCfg, err := loadEnvConfig(nil)
	if err != nil {
		slog.Error("invalid environment configuration", tint.Err(err))
		return exitFailure
	}

	level, levelErr := internal.ParseLogLevel(envCfg.LogLevel)
	slog.SetDefault(slog.New(internal.NewLogHandler(stderr, level)))
	if levelErr != nil {
		slog.Warn("invalid log level, using info", "level", envCfg.LogLevel)
	}

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	if envCfg.OTelEndpoint != "" {
		shutdown, err := internal.SetupOTel(ctx, envCfg.otelConfig())
		if err != nil {
			slog.Warn("opentelemetry disabled", tint.Err(err), "endpoint", envCfg.OTelEndpoint)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					slog.Error("failed to shutdown opentelemetry", tint.Err(err))
				}
			}()
		}
	}

	relayCfg := envCfg.relayConfig()
	flags.apply(relayCfg)

	pipeline := plogger.NewPipeline()
	pipeline.AddStage(relay.NewStage(relayCfg))

	if err := pipeline.Init(ctx); err != nil {
		slog.Error("startup failed", tint.Err(err))
		return exitFailure
	}

	pipeline.Run(ctx)

	<-ctx.Done()
	slog.Info("shutting down")

	pipeline.Close()

	return exitOK
}
