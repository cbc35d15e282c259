// Command ksdemo runs a YAML scenario against a keyed state register
// and prints a YAML report of what each subscriber received.
//
// Usage:
//
//	ksdemo -scenario path/to/scenario.yaml [-v]
//
// The exit status is non-zero if the scenario fails to parse
// or any of its expectations are not met.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gordian-engine/keyedstate"
	"github.com/gordian-engine/keyedstate/internal/ksscenario"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, executes the scenario,
// and writes the YAML report to stdout and logs to stderr.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ksdemo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		path    string
		verbose bool
	)
	fs.StringVar(&path, "scenario", "", "path to the YAML scenario file")
	fs.BoolVar(&verbose, "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if path == "" {
		fs.Usage()
		return errors.New("missing required -scenario flag")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	sc, err := ksscenario.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rep, runErr := ksscenario.Run(ctx, log, keyedstate.Config{}, sc)

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("scenario %q failed: %w", sc.Name, runErr)
	}

	return nil
}
