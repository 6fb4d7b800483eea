// Package interpreter walks a compiled workflow step by step against a live
// browser session, failing fast on the first error.
package interpreter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/stagehand/internal/workflow"
)

// State tracks where a run is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Session is the browser surface the interpreter drives. It is satisfied by
// *browser.Session; tests substitute a fake.
type Session interface {
	Navigate(ctx context.Context, url string) error
	ClickAt(ctx context.Context, x, y float64, doubleClick bool) error
	TypeText(ctx context.Context, x, y float64, focus bool, text string, clearFirst bool) error
	UploadAt(ctx context.Context, x, y float64, filePath string) error
	Screenshot(ctx context.Context, path string) error
	SaveCookies(ctx context.Context, profilePath string) error
	Close()
}

// SessionFactory opens a browser session for a run.
type SessionFactory func(ctx context.Context, settings workflow.Settings, profilePath string) (Session, error)

// StepResult records the outcome of one executed step.
type StepResult struct {
	Index       int
	Action      workflow.Kind
	Description string
	Duration    time.Duration
	Err         error
}

// Report summarizes a finished run.
type Report struct {
	RunID   string
	State   State
	Steps   []StepResult
	Elapsed time.Duration
}

// Interpreter executes workflow documents.
type Interpreter struct {
	factory      SessionFactory
	logger       *zap.Logger
	errorShotDir string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithErrorScreenshotDir sets where failure screenshots land.
func WithErrorScreenshotDir(dir string) Option {
	return func(i *Interpreter) { i.errorShotDir = dir }
}

// New builds an Interpreter around a session factory.
func New(factory SessionFactory, logger *zap.Logger, opts ...Option) *Interpreter {
	i := &Interpreter{
		factory:      factory,
		logger:       logger.Named("interpreter"),
		errorShotDir: "screenshots",
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run compiles and executes the document. The session is closed on every
// return path. On step failure the run aborts, a screenshot of the failure
// state is attempted, and the step's error is returned alongside the report.
func (i *Interpreter) Run(ctx context.Context, doc *workflow.Document) (*Report, error) {
	runID := uuid.NewString()
	logger := i.logger.With(zap.String("run_id", runID))

	steps, err := workflow.Compile(doc)
	if err != nil {
		return &Report{RunID: runID, State: StateIdle}, err
	}

	report := &Report{
		RunID: runID,
		State: StateRunning,
		Steps: make([]StepResult, 0, len(steps)),
	}

	sess, err := i.factory(ctx, doc.Settings, doc.ProfilePath())
	if err != nil {
		report.State = StateAborted
		return report, err
	}
	defer sess.Close()

	limiter := pacingLimiter(doc.Settings.Pacing)
	start := time.Now()
	logger.Info("Run started",
		zap.Int("steps", len(steps)),
		zap.Float64("pacing", doc.Settings.Pacing))

	for _, step := range steps {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				report.State = StateAborted
				report.Elapsed = time.Since(start)
				return report, workflow.Errorf(workflow.ErrSession, "run canceled: %v", err)
			}
		}

		stepStart := time.Now()
		stepLogger := logger.With(
			zap.Int("step", step.Index),
			zap.String("action", string(step.Action.Kind())))
		stepLogger.Info("Executing step", zap.String("description", step.Description))

		err := i.execute(ctx, sess, doc, step)
		result := StepResult{
			Index:       step.Index,
			Action:      step.Action.Kind(),
			Description: step.Description,
			Duration:    time.Since(stepStart),
			Err:         err,
		}
		report.Steps = append(report.Steps, result)

		if err != nil {
			stepLogger.Error("Step failed",
				zap.String("kind", string(workflow.KindOf(err))),
				zap.Error(err))
			i.captureFailure(ctx, sess, step.Index, stepLogger)
			report.State = StateAborted
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("step %d (%s): %w", step.Index, step.Action.Kind(), err)
		}
		stepLogger.Debug("Step completed", zap.Duration("elapsed", result.Duration))
	}

	report.State = StateCompleted
	report.Elapsed = time.Since(start)
	logger.Info("Run completed",
		zap.Int("steps", len(report.Steps)),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// pacingLimiter caps step dispatch at n steps per second. Zero means no cap.
func pacingLimiter(stepsPerSecond float64) *rate.Limiter {
	if stepsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(stepsPerSecond), 1)
}

// execute dispatches one compiled step to the session.
func (i *Interpreter) execute(ctx context.Context, sess Session, doc *workflow.Document, step workflow.CompiledStep) error {
	switch a := step.Action.(type) {
	case *workflow.GotoAction:
		return i.navigate(ctx, sess, a)
	case *workflow.ClickAction:
		return sess.ClickAt(ctx, a.X, a.Y, a.DoubleClick)
	case *workflow.TypeAction:
		return sess.TypeText(ctx, a.X, a.Y, a.HasPoint, a.Text, a.ClearFirst)
	case *workflow.UploadAction:
		return sess.UploadAt(ctx, a.X, a.Y, a.FilePath)
	case *workflow.WaitAction:
		return wait(ctx, a.Duration)
	case *workflow.ScreenshotAction:
		return sess.Screenshot(ctx, a.Path)
	case *workflow.SaveCookiesAction:
		return i.saveCookies(ctx, sess, doc, a)
	default:
		return workflow.Errorf(workflow.ErrActionNotFound, "no executor for action %q", step.Action.Kind())
	}
}

// navigate runs a goto, retrying network failures per the step's policy.
func (i *Interpreter) navigate(ctx context.Context, sess Session, a *workflow.GotoAction) error {
	attempts := a.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = sess.Navigate(ctx, a.URL)
		if lastErr == nil {
			return nil
		}
		if workflow.KindOf(lastErr) != workflow.ErrNetwork || attempt == attempts {
			return lastErr
		}

		i.logger.Warn("Navigation failed, retrying",
			zap.String("url", a.URL),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(lastErr))
		if err := wait(ctx, a.Retry.Delay); err != nil {
			return err
		}
	}
	return lastErr
}

// saveCookies resolves the target profile path: the step's own path wins,
// otherwise the authentication profile from the document.
func (i *Interpreter) saveCookies(ctx context.Context, sess Session, doc *workflow.Document, a *workflow.SaveCookiesAction) error {
	path := a.ProfilePath
	if path == "" {
		path = doc.ProfilePath()
	}
	if path == "" {
		return workflow.Errorf(workflow.ErrInvalidParam,
			"save_cookies needs a profile_path, either on the step or under authentication")
	}
	return sess.SaveCookies(ctx, path)
}

// captureFailure takes a best-effort screenshot of the page as it looked when
// the step failed. Errors here never mask the step's own error. An empty
// screenshot directory disables the capture.
func (i *Interpreter) captureFailure(ctx context.Context, sess Session, stepIndex int, logger *zap.Logger) {
	if i.errorShotDir == "" {
		return
	}
	path := filepath.Join(i.errorShotDir, fmt.Sprintf("error_step_%d.png", stepIndex))
	if err := sess.Screenshot(ctx, path); err != nil {
		logger.Warn("Could not capture failure screenshot", zap.Error(err))
		return
	}
	logger.Info("Failure screenshot saved", zap.String("path", path))
}

// wait sleeps for d, returning early if the context ends.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return workflow.Errorf(workflow.ErrSession, "wait interrupted: %v", ctx.Err())
	}
}
