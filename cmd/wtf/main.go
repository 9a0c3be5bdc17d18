// wtf runs a command under ptrace and shows, live, where its process tree
// spends its time in system calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/KarelPeeters/wtf/internal/tracer"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
	// Mirrors cobra and flag usage failures.
	exitUsage exitCode = 2
	// The target started but could not be traced.
	exitAttach exitCode = 125
	// The target could not be started at all.
	exitLaunch exitCode = 127
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	code := exitSuccess
	cmd := newRootCmd(runTrace, &code)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wtf: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run 'wtf --help' for usage.\n")
		return exitUsage
	}
	return code
}

// errorExitCode maps a failure to start tracing to the exit code reported
// in place of the target's own.
func errorExitCode(err error) exitCode {
	var aerr *tracer.AttachError
	var lerr *tracer.LaunchError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &aerr):
		return exitAttach
	case errors.As(err, &lerr):
		return exitLaunch
	default:
		return exitFailure
	}
}
