package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/stagehand/internal/config"
	"github.com/xkilldash9x/stagehand/internal/workflow"
)

func testSettings() workflow.Settings {
	return workflow.Settings{
		Headless:  true,
		Viewport:  workflow.Viewport{Width: 1280, Height: 720},
		ZoomLevel: 1.0,
	}
}

func TestExecAllocatorOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.UserDataDir = "/tmp/profile"
	cfg.Args = []string{"disable-extensions"}

	opts := execAllocatorOptions(cfg, testSettings())
	// Defaults plus no-sandbox, dev-shm, window size, headless, gpu,
	// user data dir, and the extra arg.
	assert.GreaterOrEqual(t, len(opts), len(chromedp.DefaultExecAllocatorOptions)+7)
}

func TestNewManagerAndShutdown(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	m, err := NewManager(context.Background(), cfg, testSettings(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Contains(t, m.String(), "browser.Manager")

	// No session was ever opened, so shutdown must still be clean.
	m.Shutdown()
}

func TestSessionCheckBounds(t *testing.T) {
	s := &Session{settings: testSettings()}

	require.NoError(t, s.checkBounds(0, 0))
	require.NoError(t, s.checkBounds(1279, 719))
	require.NoError(t, s.checkBounds(640, 360))

	for name, point := range map[string][2]float64{
		"negative x":     {-1, 100},
		"negative y":     {100, -1},
		"width on edge":  {1280, 100},
		"height on edge": {100, 720},
		"past width":     {1281, 100},
		"past height":    {100, 721},
	} {
		t.Run(name, func(t *testing.T) {
			err := s.checkBounds(point[0], point[1])
			require.Error(t, err)
			assert.Equal(t, workflow.ErrInvalidParam, workflow.KindOf(err))
		})
	}
}

func TestRestoreCookiesToleratesUnusableProfiles(t *testing.T) {
	for name, content := range map[string]string{
		"not json":        `{not valid json`,
		"wrong shape":     `{"sessions": []}`,
		"nameless cookie": `[{"value": "orphan"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			s := &Session{settings: testSettings(), logger: zaptest.NewLogger(t)}
			// A broken profile means a cold start, never a fatal error.
			require.NoError(t, s.restoreCookies(path))
		})
	}
}

func TestRestoreCookiesMissingProfile(t *testing.T) {
	s := &Session{settings: testSettings(), logger: zaptest.NewLogger(t)}
	require.NoError(t, s.restoreCookies(filepath.Join(t.TempDir(), "absent.json")))
}

func TestClassifyNavigationError(t *testing.T) {
	netErr := classifyNavigationError("https://example.com", assert.AnError)
	assert.Equal(t, workflow.ErrSession, workflow.KindOf(netErr))

	dnsErr := classifyNavigationError("https://example.com",
		errString("page load error net::ERR_NAME_NOT_RESOLVED"))
	assert.Equal(t, workflow.ErrNetwork, workflow.KindOf(dnsErr))

	timeoutErr := classifyNavigationError("https://example.com",
		errString("context deadline exceeded"))
	assert.Equal(t, workflow.ErrNetwork, workflow.KindOf(timeoutErr))
}

type errString string

func (e errString) Error() string { return string(e) }
