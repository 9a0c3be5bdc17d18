package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/KarelPeeters/wtf/internal/config"
	"github.com/KarelPeeters/wtf/internal/otel"
	"github.com/KarelPeeters/wtf/internal/output"
	"github.com/KarelPeeters/wtf/internal/tracer"
)

func setupLogging(cfg *config.Config, displayActive bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, _ := cfg.Settings.Level()
	if cfg.Verbose {
		level = log.DebugLevel
	}
	// The live view owns the terminal; only problems get through.
	if displayActive && !cfg.Verbose && level > log.WarnLevel {
		level = log.WarnLevel
	}
	log.SetLevel(level)
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func setupOTEL(ctx context.Context) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}
	tp, err := otel.InitProvider(ctx, otelCfg, version)
	if err != nil {
		return nil, nil, fmt.Errorf("ABORT: failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Errorf("Error exporting spans to %s: %v", otelCfg.GetEndpoint(), err)
		}
	}
	return tp.Tracer("wtf"), cleanup, nil
}

// runTrace profiles cfg's command and returns the exit code wtf should exit
// with: the target's own unless tracing failed.
func runTrace(ctx context.Context, cfg *config.Config) exitCode {
	display := output.NewDisplay(os.Stderr, cfg.ShowThreads)
	showLive := !cfg.NoDisplay && display.Enabled()
	setupLogging(cfg, showLive)

	var spanTracer trace.Tracer
	if cfg.ExportOTEL {
		t, cleanup, err := setupOTEL(ctx)
		if err != nil {
			log.Errorf("%v", err)
			return exitFailure
		}
		defer cleanup()
		spanTracer = t
	}

	session, err := tracer.Start(ctx, tracer.OptionsFromConfig(cfg))
	if err != nil {
		log.Errorf("%v", err)
		return errorExitCode(err)
	}
	pub := session.Publisher()

	var result tracer.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := session.Wait()
		result = res
		return err
	})
	g.Go(func() error {
		return session.Publish(gctx, cfg.Settings.RefreshInterval)
	})
	if showLive {
		g.Go(func() error {
			return display.Run(gctx, pub)
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
		return exitFailure
	}

	final := pub.Latest()
	if final == nil {
		log.Errorf("No profile was recorded")
		return exitFailure
	}
	if err := output.WriteSummary(os.Stderr, final, output.RenderOptions{ShowThreads: cfg.ShowThreads}); err != nil {
		log.Errorf("Writing summary: %v", err)
	}

	if spanTracer != nil {
		// Spans are flushed by the deferred cleanup.
		n := output.NewOTELExporter(spanTracer).Export(context.Background(), final)
		log.Infof("Exporting %d spans", n)
	}

	if result.Cancelled {
		log.Warnf("Interrupted; traced processes were killed")
	}
	return exitCode(result.Code())
}
