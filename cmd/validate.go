package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/stagehand/internal/workflow"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check a workflow file without launching a browser",
		Long: `Validate parses the workflow file and compiles every step, reporting
unknown actions and malformed parameters with their step numbers. No browser
is launched and nothing is executed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := workflow.Load(args[0])
			if err != nil {
				return err
			}

			steps, err := workflow.Compile(doc)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, viewport %dx%d, ok\n",
				args[0], len(steps),
				doc.Settings.Viewport.Width, doc.Settings.Viewport.Height)
			return nil
		},
	}
}
