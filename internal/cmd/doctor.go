package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/offlinefirst/taskrecorder/pkg/hook"
)

func newDoctorCommand() command {
	return command{
		name:        "doctor",
		description: "Report capture backend availability and configured paths",
		run: func(_ *flag.FlagSet, _ []string, app *AppContext, stdout io.Writer, _ io.Writer) error {
			return runDoctor(app, stdout)
		},
	}
}

func runDoctor(app *AppContext, stdout io.Writer) error {
	env := hook.DetectEnvironment()

	fmt.Fprintln(stdout, "Capture environment:")
	fmt.Fprintf(stdout, "  provider:   %s\n", env.Provider)
	fmt.Fprintf(stdout, "  available:  %t\n", env.Available)
	fmt.Fprintf(stdout, "  permission: %s\n", env.Permission)
	if env.Message != "" {
		fmt.Fprintf(stdout, "  message:    %s\n", env.Message)
	}
	if env.Guidance != "" {
		fmt.Fprintf(stdout, "  guidance:   %s\n", env.Guidance)
	}

	cfg := app.Config
	fmt.Fprintln(stdout, "Configuration:")
	fmt.Fprintf(stdout, "  config source: %s\n", cfg.Source)
	fmt.Fprintf(stdout, "  output dir:    %s (%s)\n", cfg.Recording.OutputDir, pathState(cfg.Recording.OutputDir))
	fmt.Fprintf(stdout, "  registry:      %s (%s)\n", cfg.Registry.Path, pathState(cfg.Registry.Path))
	fmt.Fprintf(stdout, "  control addr:  %s\n", cfg.Control.ListenAddr)

	return nil
}

func pathState(path string) string {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "missing, created on first use"
		}
		return "inaccessible: " + err.Error()
	}
	return "present"
}
