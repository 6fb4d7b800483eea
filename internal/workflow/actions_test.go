package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileGoto(t *testing.T) {
	action, err := CompileStep(Step{Action: "goto", Params: map[string]interface{}{
		"url": "https://example.com/login",
	}})
	require.NoError(t, err)

	g, ok := action.(*GotoAction)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/login", g.URL)
	assert.Zero(t, g.Retry)
}

func TestCompileGotoWithRetry(t *testing.T) {
	action, err := CompileStep(Step{Action: "goto", Params: map[string]interface{}{
		"url": "https://example.com",
		"retry": map[string]interface{}{
			"attempts": 3,
			"delay_ms": 500,
		},
	}})
	require.NoError(t, err)

	g := action.(*GotoAction)
	assert.Equal(t, 3, g.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, g.Retry.Delay)
}

func TestCompileGotoRejectsBadURLs(t *testing.T) {
	for name, url := range map[string]string{
		"relative":  "/login",
		"no scheme": "example.com/login",
		"empty":     "",
		"no host":   "https://",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CompileStep(Step{Action: "goto", Params: map[string]interface{}{"url": url}})
			require.Error(t, err)
			assert.Equal(t, ErrInvalidParam, KindOf(err))
		})
	}
}

func TestCompileGotoRejectsNegativeRetry(t *testing.T) {
	_, err := CompileStep(Step{Action: "goto", Params: map[string]interface{}{
		"url":   "https://example.com",
		"retry": map[string]interface{}{"attempts": -1},
	}})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidParam, KindOf(err))
}

func TestCompileClick(t *testing.T) {
	action, err := CompileStep(Step{Action: "click", Params: map[string]interface{}{
		"x": 150, "y": 320.5, "double_click": true,
	}})
	require.NoError(t, err)

	c := action.(*ClickAction)
	assert.Equal(t, 150.0, c.X)
	assert.Equal(t, 320.5, c.Y)
	assert.True(t, c.DoubleClick)
}

func TestCompileClickRequiresBothCoordinates(t *testing.T) {
	_, err := CompileStep(Step{Action: "click", Params: map[string]interface{}{"x": 150}})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidParam, KindOf(err))
}

func TestCompileType(t *testing.T) {
	action, err := CompileStep(Step{Action: "type", Params: map[string]interface{}{
		"text": "hello world",
	}})
	require.NoError(t, err)

	ty := action.(*TypeAction)
	assert.Equal(t, "hello world", ty.Text)
	assert.False(t, ty.HasPoint)
	assert.False(t, ty.ClearFirst)
}

func TestCompileTypeWithFocusPoint(t *testing.T) {
	action, err := CompileStep(Step{Action: "type", Params: map[string]interface{}{
		"text": "secret", "x": 10, "y": 20, "clear_first": true,
	}})
	require.NoError(t, err)

	ty := action.(*TypeAction)
	assert.True(t, ty.HasPoint)
	assert.Equal(t, 10.0, ty.X)
	assert.Equal(t, 20.0, ty.Y)
	assert.True(t, ty.ClearFirst)
}

func TestCompileTypeRejectsHalfAPoint(t *testing.T) {
	_, err := CompileStep(Step{Action: "type", Params: map[string]interface{}{
		"text": "hi", "x": 10,
	}})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidParam, KindOf(err))
}

func TestCompileUpload(t *testing.T) {
	action, err := CompileStep(Step{Action: "upload", Params: map[string]interface{}{
		"x": 400, "y": 300, "file_path": "documents/resume.pdf",
	}})
	require.NoError(t, err)

	u := action.(*UploadAction)
	assert.Equal(t, "documents/resume.pdf", u.FilePath)
}

func TestCompileWait(t *testing.T) {
	action, err := CompileStep(Step{Action: "wait", Params: map[string]interface{}{
		"milliseconds": 1500,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, action.(*WaitAction).Duration)
}

func TestCompileWaitDurationMsAlias(t *testing.T) {
	action, err := CompileStep(Step{Action: "wait", Params: map[string]interface{}{
		"duration_ms": 250,
	}})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, action.(*WaitAction).Duration)
}

func TestCompileWaitRejectsNegative(t *testing.T) {
	_, err := CompileStep(Step{Action: "wait", Params: map[string]interface{}{
		"milliseconds": -100,
	}})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidParam, KindOf(err))
}

func TestCompileScreenshot(t *testing.T) {
	action, err := CompileStep(Step{Action: "screenshot", Params: map[string]interface{}{
		"path": "shots/step1.png",
	}})
	require.NoError(t, err)
	assert.Equal(t, "shots/step1.png", action.(*ScreenshotAction).Path)
}

func TestCompileScreenshotOutputPathAlias(t *testing.T) {
	action, err := CompileStep(Step{Action: "screenshot", Params: map[string]interface{}{
		"output_path": "shots/alias.png",
	}})
	require.NoError(t, err)
	assert.Equal(t, "shots/alias.png", action.(*ScreenshotAction).Path)
}

func TestCompileSaveCookies(t *testing.T) {
	action, err := CompileStep(Step{Action: "save_cookies"})
	require.NoError(t, err)
	assert.Empty(t, action.(*SaveCookiesAction).ProfilePath)

	action, err = CompileStep(Step{Action: "save_cookies", Params: map[string]interface{}{
		"profile_path": "profiles/alt.json",
	}})
	require.NoError(t, err)
	assert.Equal(t, "profiles/alt.json", action.(*SaveCookiesAction).ProfilePath)
}

func TestCompileUnknownAction(t *testing.T) {
	_, err := CompileStep(Step{Action: "teleport"})
	require.Error(t, err)
	assert.Equal(t, ErrActionNotFound, KindOf(err))
}

func TestCompileReportsStepPosition(t *testing.T) {
	doc := &Document{Workflow: []Step{
		{Action: "goto", Params: map[string]interface{}{"url": "https://example.com"}},
		{Action: "click", Params: map[string]interface{}{"x": 1}},
	}}

	_, err := Compile(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (click)")
}

func TestCompileAssignsIndexes(t *testing.T) {
	doc := &Document{Workflow: []Step{
		{Action: "goto", Params: map[string]interface{}{"url": "https://example.com"}, Description: "open"},
		{Action: "wait", Params: map[string]interface{}{"milliseconds": 10}},
	}}

	steps, err := Compile(doc)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Index)
	assert.Equal(t, "open", steps[0].Description)
	assert.Equal(t, KindWait, steps[1].Action.Kind())
}

func TestParamTypeErrors(t *testing.T) {
	for name, step := range map[string]Step{
		"string coordinate": {Action: "click", Params: map[string]interface{}{"x": "100", "y": 200}},
		"numeric text":      {Action: "type", Params: map[string]interface{}{"text": 42}},
		"string bool":       {Action: "click", Params: map[string]interface{}{"x": 1, "y": 2, "double_click": "yes"}},
		"empty url":         {Action: "goto", Params: map[string]interface{}{"url": ""}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CompileStep(step)
			require.Error(t, err)
			assert.Equal(t, ErrInvalidParam, KindOf(err))
		})
	}
}
