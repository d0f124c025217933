// Package app assembles the sniper engine and runs it. Wire builds the
// dependency graph the configured mode needs (chain client, caches, journals,
// blob storage, notifications); App.Run dispatches into that mode's loop and
// App.Close unwinds whatever was started.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dexsniper/sniperd/internal/config"
)

// App carries the configuration, the root logger, and the cleanup stack that
// wiring populates. Close pops the stack in reverse.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New builds the App. Nothing is wired until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the mode's dependencies, then either completes a one-shot mode or
// blocks until ctx is canceled. The caller invokes Close afterwards either
// way.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "run starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "quote":
		return a.QuoteMode(ctx, deps)
	case "assess":
		return a.AssessMode(ctx, deps)
	case "scan":
		return a.ScanMode(ctx, deps)
	case "watch":
		return a.WatchMode(ctx, deps)
	case "snipe":
		return a.SnipeMode(ctx, deps)
	case "archive":
		return a.ArchiveMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close runs the cleanup stack in reverse registration order. Calling it
// again is a no-op.
func (a *App) Close() {
	a.logger.Info("closing")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
