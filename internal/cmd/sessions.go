package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

func newSessionsCommand() command {
	var limit int
	return command{
		name:        "sessions",
		description: "List finished sessions from the registry",
		configure: func(fs *flag.FlagSet) {
			fs.IntVar(&limit, "limit", 20, "Maximum number of sessions to show")
		},
		run: func(_ *flag.FlagSet, _ []string, app *AppContext, stdout io.Writer, _ io.Writer) error {
			return runSessions(app, limit, stdout)
		},
	}
}

func runSessions(app *AppContext, limit int, stdout io.Writer) error {
	reg, err := registry.Open(app.Config.Registry.Path)
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}
	defer reg.Close()

	records, err := reg.List(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded.")
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if rec.Degraded {
			status = "degraded"
		}
		fmt.Fprintf(stdout, "%s  %s  %-8s written=%-6d dropped=%-4d %s\n",
			rec.SessionID,
			rec.StartedAt.Local().Format(time.RFC3339),
			status,
			rec.EventsWritten,
			rec.Dropped,
			rec.Output)
	}
	return nil
}
