package workflow

import (
	"fmt"
	"net/url"
	"time"
)

// Kind enumerates the registered action names.
type Kind string

const (
	KindGoto        Kind = "goto"
	KindClick       Kind = "click"
	KindType        Kind = "type"
	KindUpload      Kind = "upload"
	KindWait        Kind = "wait"
	KindScreenshot  Kind = "screenshot"
	KindSaveCookies Kind = "save_cookies"
)

// Action is the closed set of executable step variants. Each concrete type
// carries its own validated parameters; the interpreter matches on the
// variant explicitly at dispatch time.
type Action interface {
	Kind() Kind
}

// RetryPolicy is the explicitly declared retry extension for network
// dependent steps. A zero policy means fail-fast with no retry.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// GotoAction navigates the session to an absolute URL.
type GotoAction struct {
	URL   string
	Retry RetryPolicy
}

// ClickAction synthesizes a pointer click at a fixed viewport coordinate.
type ClickAction struct {
	X, Y        float64
	DoubleClick bool
}

// TypeAction injects text via key events, optionally clicking (X, Y) first
// to move focus and clearing the field before typing.
type TypeAction struct {
	X, Y       float64
	HasPoint   bool
	Text       string
	ClearFirst bool
}

// UploadAction clicks (X, Y) to open a file chooser and attaches FilePath.
type UploadAction struct {
	X, Y     float64
	FilePath string
}

// WaitAction suspends step progression for a fixed duration.
type WaitAction struct {
	Duration time.Duration
}

// ScreenshotAction captures the current viewport to Path.
type ScreenshotAction struct {
	Path string
}

// SaveCookiesAction persists the session cookie set. An empty ProfilePath
// falls back to the document's authentication profile.
type SaveCookiesAction struct {
	ProfilePath string
}

func (*GotoAction) Kind() Kind        { return KindGoto }
func (*ClickAction) Kind() Kind       { return KindClick }
func (*TypeAction) Kind() Kind        { return KindType }
func (*UploadAction) Kind() Kind      { return KindUpload }
func (*WaitAction) Kind() Kind        { return KindWait }
func (*ScreenshotAction) Kind() Kind  { return KindScreenshot }
func (*SaveCookiesAction) Kind() Kind { return KindSaveCookies }

// CompiledStep pairs a validated action with its position and the
// human-readable description from the document. Index is 1-based to match
// how steps are numbered in error messages and failure screenshots.
type CompiledStep struct {
	Index       int
	Description string
	Action      Action
}

// Compile validates every step of the document up front, so a workflow with
// a malformed step fails before a browser is ever launched.
func Compile(doc *Document) ([]CompiledStep, error) {
	steps := make([]CompiledStep, 0, len(doc.Workflow))
	for i, raw := range doc.Workflow {
		action, err := CompileStep(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, raw.Action, err)
		}
		steps = append(steps, CompiledStep{
			Index:       i + 1,
			Description: raw.Description,
			Action:      action,
		})
	}
	return steps, nil
}

// CompileStep turns one raw step into its typed action variant.
func CompileStep(step Step) (Action, error) {
	p := params(step.Params)
	switch Kind(step.Action) {
	case KindGoto:
		return compileGoto(p)
	case KindClick:
		return compileClick(p)
	case KindType:
		return compileType(p)
	case KindUpload:
		return compileUpload(p)
	case KindWait:
		return compileWait(p)
	case KindScreenshot:
		return compileScreenshot(p)
	case KindSaveCookies:
		return &SaveCookiesAction{ProfilePath: p.optString("profile_path")}, nil
	default:
		return nil, Errorf(ErrActionNotFound, "action %q is not registered", step.Action)
	}
}

func compileGoto(p params) (Action, error) {
	raw, err := p.requireString("url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, Errorf(ErrInvalidParam, "url %q is not an absolute URL", raw)
	}

	action := &GotoAction{URL: raw}
	if retry, ok := p["retry"].(map[string]interface{}); ok {
		rp := params(retry)
		attempts, err := rp.optNumber("attempts")
		if err != nil {
			return nil, err
		}
		delayMs, err := rp.optNumber("delay_ms")
		if err != nil {
			return nil, err
		}
		if attempts < 0 || delayMs < 0 {
			return nil, Errorf(ErrInvalidParam, "retry.attempts and retry.delay_ms must not be negative")
		}
		action.Retry = RetryPolicy{
			Attempts: int(attempts),
			Delay:    time.Duration(delayMs) * time.Millisecond,
		}
	}
	return action, nil
}

func compileClick(p params) (Action, error) {
	x, y, err := p.requirePoint()
	if err != nil {
		return nil, err
	}
	double, err := p.optBool("double_click")
	if err != nil {
		return nil, err
	}
	return &ClickAction{X: x, Y: y, DoubleClick: double}, nil
}

func compileType(p params) (Action, error) {
	text, err := p.requireString("text")
	if err != nil {
		return nil, err
	}
	clear, err := p.optBool("clear_first")
	if err != nil {
		return nil, err
	}
	action := &TypeAction{Text: text, ClearFirst: clear}

	_, hasX := p["x"]
	_, hasY := p["y"]
	if hasX != hasY {
		return nil, Errorf(ErrInvalidParam, "type requires both x and y when a focus point is given")
	}
	if hasX {
		x, y, err := p.requirePoint()
		if err != nil {
			return nil, err
		}
		action.X, action.Y, action.HasPoint = x, y, true
	}
	return action, nil
}

func compileUpload(p params) (Action, error) {
	x, y, err := p.requirePoint()
	if err != nil {
		return nil, err
	}
	path, err := p.requireString("file_path")
	if err != nil {
		return nil, err
	}
	return &UploadAction{X: x, Y: y, FilePath: path}, nil
}

func compileWait(p params) (Action, error) {
	// The canonical key is "milliseconds"; "duration_ms" is accepted as an
	// alias for workflows written against older documents.
	key := "milliseconds"
	if _, ok := p[key]; !ok {
		if _, ok := p["duration_ms"]; ok {
			key = "duration_ms"
		}
	}
	ms, err := p.requireNumber(key)
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		return nil, Errorf(ErrInvalidParam, "wait duration must not be negative, got %v", ms)
	}
	return &WaitAction{Duration: time.Duration(ms) * time.Millisecond}, nil
}

func compileScreenshot(p params) (Action, error) {
	// The canonical key is "path"; "output_path" is accepted as an alias.
	key := "path"
	if _, ok := p[key]; !ok {
		if _, ok := p["output_path"]; ok {
			key = "output_path"
		}
	}
	path, err := p.requireString(key)
	if err != nil {
		return nil, err
	}
	return &ScreenshotAction{Path: path}, nil
}

// -- Param extraction helpers --

type params map[string]interface{}

func (p params) requireString(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", Errorf(ErrInvalidParam, "required param %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", Errorf(ErrInvalidParam, "param %q must be a non-empty string, got %T", key, v)
	}
	return s, nil
}

func (p params) optString(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p params) requireNumber(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, Errorf(ErrInvalidParam, "required param %q is missing", key)
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, Errorf(ErrInvalidParam, "param %q must be numeric, got %T", key, v)
	}
	return f, nil
}

func (p params) optNumber(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, nil
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, Errorf(ErrInvalidParam, "param %q must be numeric, got %T", key, v)
	}
	return f, nil
}

func (p params) optBool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, Errorf(ErrInvalidParam, "param %q must be a bool, got %T", key, v)
	}
	return b, nil
}

func (p params) requirePoint() (float64, float64, error) {
	x, err := p.requireNumber("x")
	if err != nil {
		return 0, 0, err
	}
	y, err := p.requireNumber("y")
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// asFloat widens the numeric types yaml.v3 produces into a float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
