package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/1broseidon/deskmcp/internal/audit"
	"github.com/1broseidon/deskmcp/internal/clipboard"
	"github.com/1broseidon/deskmcp/internal/config"
	"github.com/1broseidon/deskmcp/internal/directory"
	"github.com/1broseidon/deskmcp/internal/display"
	"github.com/1broseidon/deskmcp/internal/input"
	"github.com/1broseidon/deskmcp/internal/mcp"
	"github.com/1broseidon/deskmcp/internal/ocr"
	"github.com/1broseidon/deskmcp/internal/ocr/tesseract"
	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/session"
	"github.com/1broseidon/deskmcp/internal/x11"
)

// app is the wired server and the pieces serve must shut down.
type app struct {
	session *session.Manager
	deps    mcp.Deps
	server  *mcp.Server
	ocr     *ocr.Pipeline
}

// newApp wires every component around one session. captureSource and
// recognizers are injected so tests can run without a display.
func newApp(cfg *config.Config, factory session.Factory, captureSource platform.CaptureSource, recognizers ocr.RecognizerFactory, logger *audit.Logger) *app {
	mgr := session.New(factory, session.Options{
		StartupTimeout:  cfg.StartupTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})
	pipeline := ocr.New(captureSource, recognizers)

	deps := mcp.Deps{
		Directory: directory.New(mgr, directory.Options{
			PollInterval:   cfg.PollInterval(),
			DefaultTimeout: cfg.WindowTimeout(),
			Scope:          mgr.WaitScope,
		}),
		Mouse:    input.New(mgr, cfg.Input.DefaultMouseSpeed),
		OCR:      pipeline,
		Displays: display.New(mgr, mgr),
		Clipboard: clipboard.New(mgr, clipboard.Options{
			DefaultTimeout: cfg.ClipboardTimeout(),
			Scope:          mgr.WaitScope,
		}),
		Logger: logger,
	}
	return &app{session: mgr, deps: deps, server: mcp.NewServer(deps), ocr: pipeline}
}

// start acquires the engine and registers hotkeys. Any failure here is fatal
// for serve.
func (a *app) start(ctx context.Context, cfg *config.Config) error {
	if _, err := a.session.Acquire(ctx); err != nil {
		return err
	}
	if seq := cfg.Hotkeys.CancelWaits; seq != "" {
		if err := a.session.RegisterHotkey(ctx, seq, a.session.CancelWaits); err != nil {
			return fmt.Errorf("register cancel_waits hotkey %q: %w", seq, err)
		}
	}
	return nil
}

// stop releases the session then closes the remaining resources.
func (a *app) stop(ctx context.Context) {
	a.session.Release(ctx)
	if err := a.ocr.Close(); err != nil {
		log.Printf("Warning: failed to close recognizer: %v", err)
	}
	if err := a.server.Close(); err != nil {
		log.Printf("Warning: failed to close action log: %v", err)
	}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: $DESKMCP_CONFIG or ~/.config/deskmcp/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskmcp serve [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Start the MCP server on stdio. Designed to be invoked by MCP clients.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Example (Claude Code):")
		fmt.Fprintln(os.Stderr, "  claude mcp add deskmcp -- deskmcp serve")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	log.SetOutput(os.Stderr)

	res, err := loadConfig(*path)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	cfg := res.Config

	if term.IsTerminal(int(os.Stdin.Fd())) {
		log.Printf("deskmcp speaks MCP on stdin/stdout; run it from an MCP client rather than a terminal")
	}

	env, err := x11.ResolveDisplayEnv(cfg.Display, cfg.XAuthority)
	if err != nil {
		log.Printf("Failed to resolve X display: %v", err)
		return 1
	}
	if err := env.Apply(); err != nil {
		log.Printf("Failed to apply display environment: %v", err)
		return 1
	}
	log.Printf("Using DISPLAY=%s (%s)", env.Display, env.Source)

	auditCfg, err := cfg.AuditConfig()
	if err != nil {
		log.Printf("Failed to configure action log: %v", err)
		return 1
	}
	var logger *audit.Logger
	if auditCfg.Enabled {
		logger, err = audit.NewLogger(auditCfg)
		if err != nil {
			log.Printf("Warning: failed to initialize action log: %v", err)
			logger = nil
		}
	}

	languages := cfg.OCR.Languages
	a := newApp(cfg, platform.NewEngine, ocr.NewScreenSource(cfg.OCR.SerializeCapture), func() (platform.Recognizer, error) {
		r, err := tesseract.New(languages)
		if err != nil {
			return nil, err
		}
		return r, nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := a.start(ctx, cfg); err != nil {
		log.Printf("Failed to start desktop engine: %v", err)
		a.stop(context.Background())
		return 1
	}

	runErr := a.server.Run(ctx)
	a.stop(context.Background())
	if runErr != nil && ctx.Err() == nil {
		log.Printf("MCP server error: %v", runErr)
		return 1
	}
	return 0
}
