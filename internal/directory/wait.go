package directory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// MatchMode selects how Title and ExcludeTitle are compared, using the
// AutoHotkey SetTitleMatchMode values.
type MatchMode string

const (
	MatchStartsWith MatchMode = "1"
	MatchContains   MatchMode = "2"
	MatchExact      MatchMode = "3"
	MatchRegex      MatchMode = "RegEx"
)

// ParseMatchMode accepts "1", "2", "3" and "RegEx" (any case). Empty means
// MatchContains.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.TrimSpace(s) {
	case "":
		return MatchContains, nil
	case "1":
		return MatchStartsWith, nil
	case "2":
		return MatchContains, nil
	case "3":
		return MatchExact, nil
	}
	if strings.EqualFold(strings.TrimSpace(s), string(MatchRegex)) {
		return MatchRegex, nil
	}
	return "", fmt.Errorf("%w: title match mode %q, want 1, 2, 3 or RegEx", platform.ErrInvalidInput, s)
}

// WaitCriteria describes the window to wait for. Title may carry the
// qualifiers ahk_id, ahk_pid, ahk_exe and ahk_class followed by a value.
type WaitCriteria struct {
	Title        string
	Text         string
	ExcludeTitle string
	ExcludeText  string
	MatchMode    MatchMode
	DetectHidden bool
}

var qualifierRE = regexp.MustCompile(`(?i)\bahk_(id|pid|exe|class)\s+(\S+)`)

// matcher is WaitCriteria compiled once per wait.
type matcher struct {
	mode MatchMode

	title        string
	titleRE      *regexp.Regexp
	excludeTitle string
	excludeRE    *regexp.Regexp
	text         string
	excludeText  string

	id     platform.WindowRef
	pid    int
	hasPID bool
	exe    string
	class  string
}

func compile(c WaitCriteria) (*matcher, error) {
	mode := c.MatchMode
	if mode == "" {
		mode = MatchContains
	}
	if _, err := ParseMatchMode(string(mode)); err != nil {
		return nil, err
	}

	m := &matcher{mode: mode, text: c.Text, excludeText: c.ExcludeText, excludeTitle: c.ExcludeTitle}

	for _, q := range qualifierRE.FindAllStringSubmatch(c.Title, -1) {
		value := q[2]
		switch strings.ToLower(q[1]) {
		case "id":
			ref, err := platform.ParseWindowRef(value)
			if err != nil {
				return nil, fmt.Errorf("%w: ahk_id %q", platform.ErrInvalidInput, value)
			}
			m.id = ref
		case "pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: ahk_pid %q", platform.ErrInvalidInput, value)
			}
			m.pid, m.hasPID = pid, true
		case "exe":
			m.exe = value
		case "class":
			m.class = value
		}
	}
	m.title = strings.TrimSpace(qualifierRE.ReplaceAllString(c.Title, ""))

	if mode == MatchRegex {
		var err error
		if m.title != "" {
			if m.titleRE, err = regexp.Compile(m.title); err != nil {
				return nil, fmt.Errorf("%w: title pattern: %v", platform.ErrInvalidInput, err)
			}
		}
		if m.excludeTitle != "" {
			if m.excludeRE, err = regexp.Compile(m.excludeTitle); err != nil {
				return nil, fmt.Errorf("%w: exclude title pattern: %v", platform.ErrInvalidInput, err)
			}
		}
	}

	if m.title == "" && m.text == "" && m.id == 0 && !m.hasPID && m.exe == "" && m.class == "" {
		return nil, fmt.Errorf("%w: wait_for_window needs a title, text or ahk_ qualifier", platform.ErrInvalidInput)
	}
	return m, nil
}

func (m *matcher) matchTitle(title, pattern string, re *regexp.Regexp) bool {
	switch m.mode {
	case MatchStartsWith:
		return strings.HasPrefix(title, pattern)
	case MatchExact:
		return title == pattern
	case MatchRegex:
		return re.MatchString(title)
	default:
		return strings.Contains(title, pattern)
	}
}

// needsText reports whether matching needs the window text.
func (m *matcher) needsText() bool {
	return m.text != "" || m.excludeText != ""
}

func (m *matcher) matchWindow(w platform.WindowInfo) bool {
	if m.id != 0 && w.Ref != m.id {
		return false
	}
	if m.hasPID && w.PID != m.pid {
		return false
	}
	if m.class != "" && w.Class != m.class {
		return false
	}
	if m.exe != "" {
		if strings.Contains(m.exe, "/") {
			if w.ProcessPath != m.exe {
				return false
			}
		} else if !strings.EqualFold(w.ProcessName, m.exe) && !strings.EqualFold(filepath.Base(w.ProcessPath), m.exe) {
			return false
		}
	}
	if m.title != "" && !m.matchTitle(w.Title, m.title, m.titleRE) {
		return false
	}
	if m.excludeTitle != "" && m.matchTitle(w.Title, m.excludeTitle, m.excludeRE) {
		return false
	}
	return true
}

func (m *matcher) matchText(text string) bool {
	if m.text != "" && !strings.Contains(text, m.text) {
		return false
	}
	if m.excludeText != "" && strings.Contains(text, m.excludeText) {
		return false
	}
	return true
}

// WaitForWindow polls until a window matches c or timeout passes. A zero
// timeout uses the default. Timing out is not an error: it returns found
// false. Cancelling ctx stops the poll and returns ctx.Err().
func (d *Directory) WaitForWindow(ctx context.Context, c WaitCriteria, timeout time.Duration) (platform.WindowRef, bool, error) {
	m, err := compile(c)
	if err != nil {
		return 0, false, err
	}
	if timeout <= 0 {
		timeout = d.opts.DefaultTimeout
	}
	if d.opts.Scope != nil {
		var cancel context.CancelFunc
		ctx, cancel = d.opts.Scope(ctx)
		defer cancel()
	}

	engine, err := d.source.Acquire(ctx)
	if err != nil {
		return 0, false, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		ref, ok, err := d.scan(ctx, engine, m, c.DetectHidden)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return ref, true, nil
		}

		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-deadline.C:
			return 0, false, nil
		case <-ticker.C:
		}
	}
}

func (d *Directory) scan(ctx context.Context, engine platform.Engine, m *matcher, hidden bool) (platform.WindowRef, bool, error) {
	windows, err := engine.ListWindows(ctx, platform.ListOptions{IncludeHidden: hidden})
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, err
	}
	for _, w := range windows {
		if !m.matchWindow(w) {
			continue
		}
		if m.needsText() {
			text, err := engine.WindowText(ctx, w.Ref)
			if errors.Is(err, platform.ErrStaleReference) {
				// Closed mid-scan; keep looking.
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return 0, false, ctx.Err()
				}
				return 0, false, err
			}
			if !m.matchText(text) {
				continue
			}
		}
		return w.Ref, true, nil
	}
	return 0, false, nil
}
