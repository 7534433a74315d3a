package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/deskmcp/internal/config"
	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/platform/platformtest"
)

func testApp(cfg *config.Config, fake *platformtest.Engine, factoryErr error) *app {
	factory := func(ctx context.Context) (platform.Engine, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return fake, nil
	}
	rec := &platformtest.Recognizer{}
	return newApp(cfg, factory, &platformtest.CaptureSource{}, func() (platform.Recognizer, error) { return rec, nil }, nil)
}

func TestAppCancelHotkeyStopsWaits(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hotkeys.CancelWaits = "Mod4-Escape"
	fake := platformtest.NewEngine()
	a := testApp(cfg, fake, nil)

	if err := a.start(context.Background(), cfg); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		_, err := a.deps.Clipboard.WaitForChange(context.Background(), 10*time.Second, false)
		waitErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for fake.Watchers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !fake.Press("Mod4-Escape") {
		t.Fatal("cancel_waits hotkey not registered")
	}

	select {
	case err := <-waitErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("wait ended with %v, want cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hotkey did not cancel the wait")
	}

	a.stop(context.Background())
	if fake.Closes != 1 || fake.Stops != 1 {
		t.Fatalf("closes=%d stops=%d", fake.Closes, fake.Stops)
	}
}

func TestAppStartFailsWhenEngineDoesNotStart(t *testing.T) {
	cfg := config.DefaultConfig()
	a := testApp(cfg, nil, errors.New("cannot open display"))

	err := a.start(context.Background(), cfg)
	if !errors.Is(err, platform.ErrEngineStartup) {
		t.Fatalf("expected startup failure, got %v", err)
	}
	a.stop(context.Background())
}

func TestAppStartRejectsBadHotkey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hotkeys.CancelWaits = "Mod4-Escape"
	fake := platformtest.NewEngine()
	fake.HotkeyErr = errors.New("grab failed")
	a := testApp(cfg, fake, nil)

	err := a.start(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "cancel_waits") {
		t.Fatalf("expected hotkey error, got %v", err)
	}
	a.stop(context.Background())
}

func TestRunConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("input:\n  default_mouse_speed: 10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("wait:\n  poll_interval_ms: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := runConfig([]string{"validate", "--path", good}, &stdout, &stderr); code != 0 {
		t.Fatalf("good config exit %d: %s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != "config: ok" {
		t.Fatalf("stdout = %q", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := runConfig([]string{"validate", "--path", bad}, &stdout, &stderr); code != 1 {
		t.Fatalf("bad config exit %d", code)
	}
	if !strings.Contains(stderr.String(), "wait.poll_interval_ms") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunConfigPrint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("xauthority: /tmp/test-xauth\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := runConfig([]string{"print", "--path", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "# source: "+path) || !strings.Contains(out, "xauthority: /tmp/test-xauth") {
		t.Fatalf("print output:\n%s", out)
	}

	stdout.Reset()
	if code := runConfig([]string{"print", "--defaults"}, &stdout, &stderr); code != 0 {
		t.Fatalf("defaults exit %d", code)
	}
	if strings.Contains(stdout.String(), "# source:") || !strings.Contains(stdout.String(), "poll_interval_ms: 100") {
		t.Fatalf("defaults output:\n%s", stdout.String())
	}

	if code := runConfig([]string{"nope"}, &stdout, &stderr); code != 2 {
		t.Fatalf("unknown subcommand exit %d", code)
	}
}
