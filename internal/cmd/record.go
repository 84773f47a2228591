package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/taskrecorder/pkg/hook"
	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

func newRecordCommand() command {
	var (
		output   string
		duration time.Duration
	)
	return command{
		name:        "record",
		description: "Record one session headless, stopping on interrupt or after -duration",
		configure: func(fs *flag.FlagSet) {
			fs.StringVar(&output, "output", "", "Output CSV path (default: timestamped file under recording.output_dir)")
			fs.DurationVar(&duration, "duration", 0, "Stop automatically after this long (0 waits for interrupt)")
		},
		run: func(_ *flag.FlagSet, _ []string, app *AppContext, stdout io.Writer, _ io.Writer) error {
			return runRecord(app, output, duration, stdout)
		},
	}
}

func runRecord(app *AppContext, output string, duration time.Duration, stdout io.Writer) error {
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

	if output == "" {
		output = fmt.Sprintf("session-%s.csv", time.Now().Format("20060102-150405"))
	}
	target := resolveOutput(cfg.Recording.OutputDir, output)

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

	id, err := rec.Start(target)
	if err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	fmt.Fprintf(stdout, "Recording session %s -> %s\n", id, target)
	if duration > 0 {
		fmt.Fprintf(stdout, "Stopping automatically after %s (interrupt to stop earlier).\n", duration)
	} else {
		fmt.Fprintln(stdout, "Press Ctrl-C to stop.")
	}

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-gctx.Done():
		case <-timer.C:
		}
	} else {
		<-gctx.Done()
	}

	summary, stopErr := rec.Stop()
	stop()
	if err := g.Wait(); err != nil && stopErr == nil {
		stopErr = err
	}
	if stopErr != nil {
		return stopErr
	}

	fmt.Fprintf(stdout, "Session %s finished\n", summary.SessionID)
	fmt.Fprintf(stdout, "  output:       %s\n", summary.Output)
	fmt.Fprintf(stdout, "  duration:     %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(stdout, "  written:      %d\n", summary.EventsWritten)
	fmt.Fprintf(stdout, "  dropped:      %d\n", summary.Dropped)
	fmt.Fprintf(stdout, "  unrecognized: %d\n", summary.Unrecognized)
	fmt.Fprintf(stdout, "  coalesced:    %d\n", summary.Coalesced)
	if summary.Degraded {
		fmt.Fprintf(stdout, "  DEGRADED: %s\n", summary.FailureReason)
	}
	return nil
}
