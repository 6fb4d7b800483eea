package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagehand/internal/browser"
	"github.com/xkilldash9x/stagehand/internal/interpreter"
	"github.com/xkilldash9x/stagehand/internal/observability"
	"github.com/xkilldash9x/stagehand/internal/workflow"
)

func newRunCommand() *cobra.Command {
	var (
		workflowPath string
		timeout      time.Duration
	)

	runCmd := &cobra.Command{
		Use:   "run [workflow.yaml]",
		Short: "Execute a workflow against a live browser",
		Long: `Run loads a workflow file, launches a browser, restores the cookie
profile when one exists, and replays every step in order. The run stops at
the first failing step and captures a screenshot of the failure state.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			logger := observability.GetLogger()

			path := cfg.Run.WorkflowPath
			if workflowPath != "" {
				path = workflowPath
			}
			if len(args) == 1 {
				path = args[0]
			}

			doc, err := workflow.Load(path)
			if err != nil {
				return err
			}
			logger.Info("Workflow loaded",
				zap.String("path", path),
				zap.Int("steps", len(doc.Workflow)))

			ctx := cmd.Context()
			if timeout == 0 {
				timeout = cfg.Run.Timeout
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			manager, err := browser.NewManager(ctx, cfg.Browser, doc.Settings, logger)
			if err != nil {
				return err
			}
			defer manager.Shutdown()

			factory := func(ctx context.Context, settings workflow.Settings, profilePath string) (interpreter.Session, error) {
				return manager.NewSession(ctx, settings, profilePath)
			}

			interp := interpreter.New(factory, logger,
				interpreter.WithErrorScreenshotDir(cfg.Run.ErrorScreenshotDir))

			report, err := interp.Run(ctx, doc)
			if err != nil {
				return fmt.Errorf("run %s aborted after %d steps: %w",
					report.RunID, len(report.Steps), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed: %d steps in %s\n",
				report.RunID, len(report.Steps), report.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	runCmd.Flags().StringVarP(&workflowPath, "workflow", "w", "", "workflow file to execute")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run deadline (0 means no deadline)")
	return runCmd
}
