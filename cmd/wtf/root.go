package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KarelPeeters/wtf/internal/attributes"
	"github.com/KarelPeeters/wtf/internal/config"
)

type runFunc func(ctx context.Context, cfg *config.Config) exitCode

// newRootCmd builds the command line. run is called with the parsed
// configuration and its result stored in code; anything returned by
// Execute is a usage error.
func newRootCmd(run runFunc, code *exitCode) *cobra.Command {
	var (
		rawAttrs   []string
		threads    bool
		verbose    bool
		noDisplay  bool
		exportOTEL bool
	)

	cmd := &cobra.Command{
		Use:   "wtf [flags] <command> [args...]",
		Short: "Live syscall profiler for a command and everything it spawns",
		Long: `wtf runs a command under ptrace and profiles the system calls of the
command and every process it spawns. While the command runs, a live view of
the process tree is drawn on stderr; when it ends, a summary is printed.

Settings are read from the environment:
  WTF_REFRESH_INTERVAL  live view refresh interval (default 100ms)
  WTF_LOG_LEVEL         log level (default info)
  WTF_MAX_EXEC_ARGS     argv/envp entries captured per exec (default 256)
  WTF_MAX_STRING_LEN    bytes captured per argv/envp entry (default 4096)
  WTF_ATTRIBUTES        custom attributes, NAME=EXPR;NAME=EXPR
  OTEL_*                OTLP exporter settings for --export-otel`,
		Example: `  wtf make -j8
  wtf -a branch='env["GIT_BRANCH"]' -- go test ./...
  wtf --no-display --export-otel ./build.sh`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ParseSettings()
			if err != nil {
				return err
			}
			cfg, err := config.New(args, rawAttrs, settings)
			if err != nil {
				return err
			}
			// Expressions are compiled up front so mistakes are usage errors.
			if _, err := attributes.NewEvaluator(cfg.CustomAttributes); err != nil {
				return err
			}
			cfg.ShowThreads = threads
			cfg.Verbose = verbose
			cfg.NoDisplay = noDisplay
			cfg.ExportOTEL = exportOTEL

			*code = run(cmd.Context(), cfg)
			return nil
		},
	}

	flags := cmd.Flags()
	// Everything after the command belongs to the command.
	flags.SetInterspersed(false)
	flags.StringArrayVarP(&rawAttrs, "attribute", "a", nil, "custom attribute NAME=EXPR evaluated for every process (repeatable)")
	flags.BoolVar(&threads, "threads", false, "show threads in the process tree")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&noDisplay, "no-display", false, "disable the live view, print only the summary")
	flags.BoolVar(&exportOTEL, "export-otel", false, "export the profile as OTLP spans when done")

	return cmd
}
