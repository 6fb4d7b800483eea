package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the application version, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/xkilldash9x/stagehand/cmd.Version=1.0.0"
var Version = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stagehand %s (%s/%s)\n",
				Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
