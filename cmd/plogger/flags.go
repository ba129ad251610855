package main

import (
	"fmt"
	"io"

	"github.com/FerroO2000/plogger/relay"
	"github.com/spf13/pflag"
)

type cliFlags struct {
	output   string
	truncate bool
	help     bool

	outputSet bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	flags := &cliFlags{}

	// Errors and usage are printed here, not by pflag
	flagSet := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() {}
	flagSet.StringVarP(&flags.output, "output", "o", "", "append the relayed packets to this file instead of stdout")
	flagSet.BoolVarP(&flags.truncate, "truncate", "t", false, "truncate the output file instead of appending")
	flagSet.BoolVarP(&flags.help, "help", "h", false, "show help")

	printUsage := func() {
		fmt.Fprintf(stderr, "Usage: %s [-o FILE] [-t]\n\n", serviceName)
		fmt.Fprintf(stderr, "Relays the packets of the %q queue to the %q queue, logging them to stdout or FILE.\n\n",
			relay.DefaultInputQueue, relay.DefaultOutputQueue)
		fmt.Fprint(stderr, flagSet.FlagUsages())
	}

	err := flagSet.Parse(args)
	if err == nil && flagSet.NArg() > 0 {
		err = fmt.Errorf("unexpected argument %q", flagSet.Arg(0))
	}

	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
		printUsage()
		return nil, err
	}

	if flags.help {
		printUsage()
		return flags, nil
	}

	flags.outputSet = flagSet.Changed("output")

	return flags, nil
}

// apply overrides the relay configuration with the flags.
func (f *cliFlags) apply(cfg *relay.Config) {
	if f.outputSet {
		cfg.OutputPath = f.output
	}

	if f.truncate {
		cfg.SinkMode = relay.SinkModeTruncate
	}
}
