package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagehand/internal/config"
	"github.com/xkilldash9x/stagehand/internal/workflow"
)

// Session is a single automated browser tab. All interaction methods validate
// coordinates against the fixed viewport before touching the page, so a
// recording made at one resolution fails loudly instead of clicking air.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	settings  workflow.Settings
	cfg       config.BrowserConfig
	release   func()
	closeOnce sync.Once
	logger    *zap.Logger
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// checkBounds rejects coordinates outside the emulated viewport. The bounds
// are half-open: (width, height) is already the first off-screen pixel.
func (s *Session) checkBounds(x, y float64) error {
	w := float64(s.settings.Viewport.Width)
	h := float64(s.settings.Viewport.Height)
	if x < 0 || y < 0 || x >= w || y >= h {
		return workflow.Errorf(workflow.ErrInvalidParam,
			"coordinates (%.0f, %.0f) fall outside the %dx%d viewport",
			x, y, s.settings.Viewport.Width, s.settings.Viewport.Height)
	}
	return nil
}

// actionCtx bounds a single interaction with the configured action timeout.
func (s *Session) actionCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ActionTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.cfg.ActionTimeout)
}

// run executes chromedp actions on the tab, honoring the caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads the URL and waits for the page to become ready, then locks
// the zoom level so pixel coordinates stay stable.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	navCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.NavigationTimeout > 0 {
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	}
	defer cancel()

	start := time.Now()
	err := s.run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return classifyNavigationError(rawURL, err)
	}

	if err := s.applyZoom(ctx); err != nil {
		return err
	}

	s.logger.Info("Navigated",
		zap.String("url", rawURL),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// classifyNavigationError separates transport failures from session faults so
// retry policies only retry what a retry can fix.
func classifyNavigationError(rawURL string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::"),
		strings.Contains(msg, "ERR_"),
		strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "timeout"):
		return workflow.Errorf(workflow.ErrNetwork, "navigate to %q: %v", rawURL, err)
	default:
		return workflow.Errorf(workflow.ErrSession, "navigate to %q: %v", rawURL, err)
	}
}

// applyZoom sets document.body.style.zoom when a non-default level is
// configured. Recordings made at a browser zoom other than 100% need the
// same zoom on replay for coordinates to line up.
func (s *Session) applyZoom(ctx context.Context) error {
	if s.settings.ZoomLevel == 1.0 {
		return nil
	}
	script := fmt.Sprintf("document.body.style.zoom = %g", s.settings.ZoomLevel)
	if err := s.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return workflow.Errorf(workflow.ErrSession, "apply zoom level %g: %v", s.settings.ZoomLevel, err)
	}
	return nil
}

// ClickAt dispatches a mouse click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64, doubleClick bool) error {
	if err := s.checkBounds(x, y); err != nil {
		return err
	}
	actx, cancel := s.actionCtx(ctx)
	defer cancel()

	opts := []chromedp.MouseOption{chromedp.ButtonLeft}
	if doubleClick {
		opts = append(opts, chromedp.ClickCount(2))
	}
	if err := s.run(actx, chromedp.MouseClickXY(x, y, opts...)); err != nil {
		return workflow.Errorf(workflow.ErrSession, "click at (%.0f, %.0f): %v", x, y, err)
	}

	s.logger.Debug("Clicked",
		zap.Float64("x", x), zap.Float64("y", y),
		zap.Bool("double", doubleClick))
	return nil
}

// TypeText types into the currently focused element. When coordinates are
// given the element at that point is clicked first to take focus, and
// clearFirst selects and deletes any existing value before typing.
func (s *Session) TypeText(ctx context.Context, x, y float64, focus bool, text string, clearFirst bool) error {
	if focus {
		if err := s.ClickAt(ctx, x, y, false); err != nil {
			return err
		}
	}

	actx, cancel := s.actionCtx(ctx)
	defer cancel()

	var actions []chromedp.Action
	if clearFirst {
		actions = append(actions,
			chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
			chromedp.KeyEvent(kb.Delete),
		)
	}
	actions = append(actions, chromedp.KeyEvent(text))

	if err := s.run(actx, actions...); err != nil {
		return workflow.Errorf(workflow.ErrSession, "type %d characters: %v", len(text), err)
	}

	s.logger.Debug("Typed text",
		zap.Int("length", len(text)),
		zap.Bool("clear_first", clearFirst))
	return nil
}

// UploadAt clicks a file input at the given coordinates and answers the
// resulting file chooser dialog with the local path. The file must exist
// before the dialog opens; a chooser left hanging wedges the tab.
func (s *Session) UploadAt(ctx context.Context, x, y float64, filePath string) error {
	if err := s.checkBounds(x, y); err != nil {
		return err
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return workflow.Errorf(workflow.ErrInvalidParam, "resolve upload path %q: %v", filePath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return workflow.Errorf(workflow.ErrFileNotFound, "upload file %q: %v", abs, err)
	}

	actx, cancel := s.actionCtx(ctx)
	defer cancel()

	chosen := make(chan error, 1)
	lctx, lcancel := context.WithCancel(s.ctx)
	defer lcancel()

	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if opened, ok := ev.(*page.EventFileChooserOpened); ok {
			go func() {
				err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
					return dom.SetFileInputFiles([]string{abs}).
						WithBackendNodeID(opened.BackendNodeID).
						Do(ctx)
				}))
				select {
				case chosen <- err:
				default:
				}
			}()
		}
	})

	err = s.run(actx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return page.SetInterceptFileChooserDialog(true).Do(ctx)
		}),
		chromedp.MouseClickXY(x, y),
	)
	if err != nil {
		return workflow.Errorf(workflow.ErrSession, "open file chooser at (%.0f, %.0f): %v", x, y, err)
	}

	select {
	case err := <-chosen:
		if err != nil {
			return workflow.Errorf(workflow.ErrSession, "attach file %q: %v", abs, err)
		}
	case <-actx.Done():
		return workflow.Errorf(workflow.ErrSession,
			"file chooser did not open at (%.0f, %.0f); is there a file input there?", x, y)
	}

	// Stop intercepting so later clicks behave normally.
	_ = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.SetInterceptFileChooserDialog(false).Do(ctx)
	}))

	s.logger.Info("Uploaded file", zap.String("path", abs))
	return nil
}

// Screenshot captures the visible viewport as PNG and writes it to path,
// creating parent directories as needed.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	actx, cancel := s.actionCtx(ctx)
	defer cancel()

	var buf []byte
	if err := s.run(actx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return workflow.Errorf(workflow.ErrSession, "capture screenshot: %v", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return workflow.Errorf(workflow.ErrPersistence, "create screenshot directory %q: %v", dir, err)
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return workflow.Errorf(workflow.ErrPersistence, "write screenshot %q: %v", path, err)
	}

	s.logger.Info("Screenshot saved", zap.String("path", path), zap.Int("bytes", len(buf)))
	return nil
}

// SaveCookies exports every cookie the browser holds to the profile path.
func (s *Session) SaveCookies(ctx context.Context, profilePath string) error {
	actx, cancel := s.actionCtx(ctx)
	defer cancel()

	var cookies []*network.Cookie
	err := s.run(actx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return workflow.Errorf(workflow.ErrSession, "read cookies from browser: %v", err)
	}

	stored := fromNetworkCookies(cookies)
	if err := SaveCookies(profilePath, stored); err != nil {
		return err
	}

	s.logger.Info("Cookie profile saved",
		zap.String("profile_path", profilePath),
		zap.String("profile", DescribeProfile(stored)))
	return nil
}

// Close tears down the tab and frees its session slot. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("Session cancel returned an error", zap.Error(err))
		}
		s.cancel()
		if s.release != nil {
			s.release()
		}
		s.logger.Info("Session closed")
	})
}
