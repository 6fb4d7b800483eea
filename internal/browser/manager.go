package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/stagehand/internal/config"
	"github.com/xkilldash9x/stagehand/internal/workflow"
)

// Manager owns the browser process allocator and creates sessions against it.
// One Manager maps to one browser process; sessions are tabs.
type Manager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         config.BrowserConfig
	sessions    *semaphore.Weighted
	logger      *zap.Logger
}

// NewManager starts the exec allocator. The browser process itself launches
// lazily on the first session.
func NewManager(ctx context.Context, cfg config.BrowserConfig, settings workflow.Settings, logger *zap.Logger) (*Manager, error) {
	opts := execAllocatorOptions(cfg, settings)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	maxSessions := cfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Manager{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		sessions:    semaphore.NewWeighted(maxSessions),
		logger:      logger.Named("browser"),
	}, nil
}

// execAllocatorOptions builds the Chrome launch flags for the run.
func execAllocatorOptions(cfg config.BrowserConfig, settings workflow.Settings) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(int(settings.Viewport.Width), int(settings.Viewport.Height)),
	)

	if settings.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewSession opens a browser tab, fixes the viewport to the configured
// dimensions, and restores the cookie profile when one is present on disk.
func (m *Manager) NewSession(ctx context.Context, settings workflow.Settings, profilePath string) (*Session, error) {
	if err := m.sessions.Acquire(ctx, 1); err != nil {
		return nil, workflow.Errorf(workflow.ErrSession, "waiting for a free session slot: %v", err)
	}

	id := uuid.NewString()
	logger := m.logger.With(zap.String("session_id", id))

	taskCtx, taskCancel := chromedp.NewContext(m.allocCtx)

	// Starts the browser and pins device metrics so recorded coordinates
	// land on the same pixels on every run.
	err := chromedp.Run(taskCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(
				settings.Viewport.Width, settings.Viewport.Height, 1.0, false,
			).Do(ctx)
		}),
	)
	if err != nil {
		taskCancel()
		m.sessions.Release(1)
		return nil, workflow.Errorf(workflow.ErrSession, "start browser session: %v", err)
	}

	s := &Session{
		id:       id,
		ctx:      taskCtx,
		cancel:   taskCancel,
		settings: settings,
		cfg:      m.cfg,
		release:  func() { m.sessions.Release(1) },
		logger:   logger,
	}

	if profilePath != "" {
		if err := s.restoreCookies(profilePath); err != nil {
			s.Close()
			return nil, err
		}
	}

	logger.Info("Session started",
		zap.Int64("viewport_width", settings.Viewport.Width),
		zap.Int64("viewport_height", settings.Viewport.Height),
		zap.Bool("headless", settings.Headless))
	return s, nil
}

// restoreCookies loads a profile from disk and injects it into the browser.
// A missing, unreadable, or corrupt profile is not an error; the run simply
// starts logged out.
func (s *Session) restoreCookies(profilePath string) error {
	cookies, err := LoadCookies(profilePath)
	if err != nil {
		if workflow.KindOf(err) == workflow.ErrFileNotFound {
			s.logger.Info("No cookie profile found, starting fresh",
				zap.String("profile_path", profilePath))
		} else {
			s.logger.Warn("Cookie profile is unusable, starting fresh",
				zap.String("profile_path", profilePath),
				zap.Error(err))
		}
		return nil
	}

	params, err := toCookieParams(cookies)
	if err != nil {
		s.logger.Warn("Cookie profile is unusable, starting fresh",
			zap.String("profile_path", profilePath),
			zap.Error(err))
		return nil
	}

	err = chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return workflow.Errorf(workflow.ErrSession, "restore cookies: %v", err)
	}

	s.logger.Info("Cookie profile restored",
		zap.String("profile_path", profilePath),
		zap.String("profile", DescribeProfile(cookies)))
	return nil
}

// Shutdown tears down the allocator and every session under it. The exec
// allocator waits for its browser process to exit when its context ends.
func (m *Manager) Shutdown() {
	m.allocCancel()
	m.logger.Info("Browser manager shut down")
}

// String identifies the manager in diagnostics.
func (m *Manager) String() string {
	return fmt.Sprintf("browser.Manager(user_data_dir=%q)", m.cfg.UserDataDir)
}
