package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/platform/platformtest"
)

func TestWaitForWindow_Matching(t *testing.T) {
	tests := []struct {
		name     string
		criteria WaitCriteria
		want     platform.WindowRef
		found    bool
	}{
		{"contains is the default", WaitCriteria{Title: "Notepad"}, 0x100, true},
		{"starts with", WaitCriteria{Title: "Calc", MatchMode: MatchStartsWith}, 0x300, true},
		{"exact", WaitCriteria{Title: "Notepad", MatchMode: MatchExact}, 0x200, true},
		{"regex", WaitCriteria{Title: `^Not\w+$`, MatchMode: MatchRegex}, 0x200, true},
		{"exclude title", WaitCriteria{Title: "Notepad", ExcludeTitle: "Untitled"}, 0x200, true},
		{"text", WaitCriteria{Title: "Notepad", Text: "dear diary"}, 0x200, true},
		{"exclude text", WaitCriteria{Title: "Notepad", ExcludeText: "dear diary"}, 0x100, true},
		{"ahk_class", WaitCriteria{Title: "ahk_class Calc"}, 0x300, true},
		{"ahk_exe", WaitCriteria{Title: "ahk_exe NOTEPAD"}, 0x100, true},
		{"ahk_exe full path", WaitCriteria{Title: "ahk_exe /opt/calc/calc"}, 0x300, true},
		{"ahk_pid", WaitCriteria{Title: "ahk_pid 22"}, 0x200, true},
		{"ahk_id", WaitCriteria{Title: "ahk_id 0x300"}, 0x300, true},
		{"title and qualifier", WaitCriteria{Title: "Untitled ahk_class Notepad"}, 0x100, true},
		{"no match times out", WaitCriteria{Title: "Paint"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, dir := newFixture()
			fake.Texts = map[platform.WindowRef]string{0x200: "Notepad\ndear diary"}

			got, found, err := dir.WaitForWindow(context.Background(), tt.criteria, 30*time.Millisecond)
			if err != nil {
				t.Fatalf("WaitForWindow error: %v", err)
			}
			if got != tt.want || found != tt.found {
				t.Fatalf("WaitForWindow = %v, %v; want %v, %v", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestWaitForWindow_HiddenWindows(t *testing.T) {
	fake, dir := newFixture()
	fake.Hidden = map[platform.WindowRef]bool{0x300: true}

	_, found, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "Calculator"}, 20*time.Millisecond)
	if err != nil || found {
		t.Fatalf("hidden window should not match: found=%v err=%v", found, err)
	}
	got, found, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "Calculator", DetectHidden: true}, 20*time.Millisecond)
	if err != nil || !found || got != 0x300 {
		t.Fatalf("DetectHidden wait = %v, %v, %v", got, found, err)
	}
}

func TestWaitForWindow_AppearsLater(t *testing.T) {
	fake, dir := newFixture()
	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.AddWindow(platform.WindowInfo{Ref: 0x400, Title: "Save As"})
	}()

	got, found, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "Save As"}, time.Second)
	if err != nil || !found || got != 0x400 {
		t.Fatalf("WaitForWindow = %v, %v, %v", got, found, err)
	}
}

func TestWaitForWindow_CancelStopsPolling(t *testing.T) {
	_, dir := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, found, err := dir.WaitForWindow(ctx, WaitCriteria{Title: "never"}, 10*time.Second)
	if !errors.Is(err, context.Canceled) || found {
		t.Fatalf("expected context.Canceled, got found=%v err=%v", found, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancel did not stop the wait promptly")
	}
}

func TestWaitForWindow_ScopeCancels(t *testing.T) {
	fake, _ := newFixture()
	scopeCtx, stopAll := context.WithCancel(context.Background())
	dir := New(platformtest.NewSource(fake), Options{
		PollInterval: 5 * time.Millisecond,
		Scope: func(parent context.Context) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(parent)
			stop := context.AfterFunc(scopeCtx, cancel)
			return ctx, func() { stop(); cancel() }
		},
	})
	go func() {
		time.Sleep(20 * time.Millisecond)
		stopAll()
	}()

	_, _, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "never"}, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation from scope, got %v", err)
	}
}

func TestWaitForWindow_InvalidCriteria(t *testing.T) {
	_, dir := newFixture()
	bad := []WaitCriteria{
		{},
		{Title: "x", MatchMode: "4"},
		{Title: "(", MatchMode: MatchRegex},
		{Title: "ahk_pid abc"},
	}
	for _, c := range bad {
		if _, _, err := dir.WaitForWindow(context.Background(), c, 10*time.Millisecond); !errors.Is(err, platform.ErrInvalidInput) {
			t.Errorf("WaitForWindow(%+v) = %v, want ErrInvalidInput", c, err)
		}
	}
}

func TestParseMatchMode(t *testing.T) {
	for in, want := range map[string]MatchMode{"": MatchContains, "1": MatchStartsWith, "2": MatchContains, "3": MatchExact, "regex": MatchRegex, "RegEx": MatchRegex} {
		got, err := ParseMatchMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMatchMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMatchMode("slow"); !errors.Is(err, platform.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWaitForWindow_TextErrors(t *testing.T) {
	t.Run("stale window is skipped", func(t *testing.T) {
		fake, dir := newFixture()
		fake.Texts = map[platform.WindowRef]string{0x200: "Notepad\ndear diary"}
		fake.TextErrs = map[platform.WindowRef]error{
			0x100: fmt.Errorf("%w: window 0x100", platform.ErrStaleReference),
		}

		got, found, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "Notepad", Text: "diary"}, 30*time.Millisecond)
		if err != nil || !found || got != 0x200 {
			t.Fatalf("WaitForWindow = %v, %v, %v; want 0x200, true, nil", got, found, err)
		}
	})

	t.Run("engine failure is returned", func(t *testing.T) {
		fake, dir := newFixture()
		broken := errors.New("connection reset")
		fake.TextErrs = map[platform.WindowRef]error{0x100: broken}

		start := time.Now()
		_, found, err := dir.WaitForWindow(context.Background(), WaitCriteria{Title: "Notepad", Text: "diary"}, 5*time.Second)
		if !errors.Is(err, broken) || found {
			t.Fatalf("WaitForWindow found=%v err=%v, want %v", found, err, broken)
		}
		if time.Since(start) > time.Second {
			t.Fatal("engine failure should not wait for the timeout")
		}
	})
}
