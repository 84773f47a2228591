package cmd

import (
	"flag"
	"fmt"
	"io"
)

func newVersionCommand() command {
	return command{
		name:        "version",
		description: "Print version information",
		skipInit:    true,
		run: func(_ *flag.FlagSet, _ []string, _ *AppContext, stdout io.Writer, _ io.Writer) error {
			fmt.Fprintf(stdout, "taskrec %s\n", versionString())
			return nil
		},
	}
}
