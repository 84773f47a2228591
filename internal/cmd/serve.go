package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/taskrecorder/internal/server"
	"github.com/offlinefirst/taskrecorder/pkg/config"
	"github.com/offlinefirst/taskrecorder/pkg/hook"
	"github.com/offlinefirst/taskrecorder/pkg/recorder"
	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

func newServeCommand() command {
	return command{
		name:        "serve",
		description: "Run the capture hook and local control API until interrupted",
		run: func(_ *flag.FlagSet, _ []string, app *AppContext, _ io.Writer, _ io.Writer) error {
			return runServe(app)
		},
	}
}

func runServe(app *AppContext) error {
	cfg := app.Config
	logger := app.Logger

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}
	defer reg.Close()

	rec, err := newRecorder(cfg, logger, reg)
	if err != nil {
		return err
	}

	h := hook.New(nil)
	h.SetHandler(rec.Sink())

	env := hook.DetectEnvironment()
	logger.Info("capture environment",
		"provider", env.Provider,
		"available", env.Available,
		"permission", env.Permission)
	if !env.Available {
		logger.Warn("input capture unavailable", "message", env.Message, "guidance", env.Guidance)
	}

	srv := server.New(cfg.Control.ListenAddr, logger,
		&resolvingController{rec: rec, outputDir: cfg.Recording.OutputDir}, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := h.Listen(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("input hook: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	runErr := g.Wait()

	// An interrupted serve must not lose the open session's tail.
	if summary, stopErr := rec.Stop(); stopErr == nil {
		logger.Info("session flushed at shutdown",
			"session_id", summary.SessionID,
			"written", summary.EventsWritten,
			"dropped", summary.Dropped)
	}

	return runErr
}

// newRecorder builds the session controller with the registry wired in as the
// session-end sink. reg may be nil, in which case summaries are only logged.
func newRecorder(cfg config.Config, logger *slog.Logger, reg *registry.Registry) (*recorder.Recorder, error) {
	opts := recorder.Options{
		Logger:         logger,
		QueueSoftLimit: cfg.Recording.QueueSoftLimit,
		MoveThrottle:   moveThrottle(cfg),
		FlushEvery:     cfg.Recording.FlushEvery,
	}
	if reg != nil {
		opts.OnSessionEnd = func(summary recorder.Summary) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := reg.Insert(ctx, summary); err != nil {
				logger.Error("session registry insert failed",
					"session_id", summary.SessionID, "error", err)
			}
		}
	}
	return recorder.New(opts)
}

// resolvingController lets control API clients pass a bare file name and have
// it land under the configured output directory.
type resolvingController struct {
	rec       *recorder.Recorder
	outputDir string
}

func (c *resolvingController) Start(output string) (string, error) {
	return c.rec.Start(resolveOutput(c.outputDir, output))
}

func (c *resolvingController) Stop() (recorder.Summary, error) { return c.rec.Stop() }

func (c *resolvingController) Status() recorder.Status { return c.rec.Status() }

// resolveOutput joins bare file names onto the output directory; paths with
// any directory component pass through untouched.
func resolveOutput(outputDir, output string) string {
	if outputDir == "" || filepath.IsAbs(output) || filepath.Dir(output) != "." {
		return output
	}
	return filepath.Join(outputDir, output)
}

func moveThrottle(cfg config.Config) time.Duration {
	return time.Duration(cfg.Recording.MoveThrottleMillis) * time.Millisecond
}
