// lx-autoassign assigns unassigned ServiceNow tickets to the members of a
// training-operations team and acknowledges them to the reporter.
//
// Usage:
//
//	lx-autoassign assign <team> [--assignee NAME] [--continuous] [--interval SECONDS]
//	lx-autoassign list-tickets <team> [--limit N]
//	lx-autoassign history <team> [--limit N]
//	lx-autoassign teams
//	lx-autoassign test
//	lx-autoassign token --subject NAME
//
// Every command accepts --config PATH and --log-level LEVEL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalFlags are accepted by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func (g *globalFlags) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "YAML config file (default $LX_CONFIG_FILE or config.yaml)")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

func commands() []command {
	return []command{
		{"assign", "assign a team's unassigned tickets once or continuously", runAssign},
		{"list-tickets", "list a team's unassigned tickets without changing them", runListTickets},
		{"history", "show recent assignment audit entries for a team", runHistory},
		{"teams", "list the compiled-in teams", runTeams},
		{"test", "check connectivity to the ticketing system and optional backends", runTest},
		{"token", "issue a bearer token for the status API", runToken},
	}
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return apperrors.ExitOK
	}
	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}
		err := cmd.run(ctx, args[1:], stdout)
		switch {
		case err == nil, errors.Is(err, pflag.ErrHelp):
			return apperrors.ExitOK
		case errors.Is(err, context.Canceled):
			return apperrors.ExitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
	printUsage(stderr)
	return apperrors.ExitConfiguration
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: lx-autoassign <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-14s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'lx-autoassign <command> --help' for command flags.")
}

// newFlagSet returns a flag set carrying the global flags.
func newFlagSet(name string, g *globalFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	g.addFlags(fs)
	return fs
}

// teamArg returns the single positional team key.
func teamArg(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("%s: expected exactly one team argument, got %d", fs.Name(), fs.NArg()), nil)
	}
	return fs.Arg(0), nil
}
