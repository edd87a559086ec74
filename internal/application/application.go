// Package application wires configuration, browser sessions, supervisors and the status server.
package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"boardkiosk/internal/browser"
	"boardkiosk/internal/config"
	"boardkiosk/internal/monitor"
	"boardkiosk/internal/overlay"
	"boardkiosk/internal/server"
	"boardkiosk/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Reloader is anything that accepts page reload requests.
type Reloader interface {
	RequestReload()
}

// Run starts one browser session and supervisor per board plus the status server, and blocks
// until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logPath := filepath.Join(cfg.DataDirectory, "connectivity_log.json")
	connLog, err := storage.NewConnectivityLog(logPath, cfg.Probe.HistoryCapacity*len(cfg.Boards))
	if err != nil {
		return fmt.Errorf("initialise connectivity log: %w", err)
	}
	// deferred first so it runs after every supervisor has stopped
	defer func() {
		if err := connLog.Flush(); err != nil {
			logger.Warn("flush connectivity log", zap.Error(err))
		}
	}()

	payload, err := OverlayPayload(cfg.Probe)
	if err != nil {
		return err
	}
	logger.Info("offline overlay prepared", zap.String("summary", summarize(payload)))

	injections, styles, err := buildInjections(cfg)
	if err != nil {
		return err
	}

	prober := monitor.NewHTTPProber(cfg.Probe.URL, cfg.Probe.Timeout())
	boards := make([]server.Board, 0, len(cfg.Boards))
	reloaders := make([]Reloader, 0, len(cfg.Boards))

	for i, b := range cfg.Boards {
		url := b.FollowURL(cfg.BaseURL)
		session, err := browser.NewSession(ctx, browser.Config{
			Board:      b,
			URL:        url,
			Headless:   cfg.Browser.Headless,
			Kiosk:      cfg.Browser.Kiosk,
			ExecPath:   cfg.Browser.ExecPath,
			ProfileDir: profileDir(cfg.Browser.UserDataDir, i),
			ZoomFactor: cfg.Browser.ZoomFactor,
			Injections: injections,
		}, logger)
		if err != nil {
			return fmt.Errorf("board %s: %w", b.ID, err)
		}
		defer session.Close()

		// a page that failed to load is opened again by the next reload the supervisor issues
		if err := session.Open(ctx); err != nil {
			logger.Warn("board page did not load", zap.String("board", b.ID), zap.Error(err))
		}

		sup := monitor.NewSupervisor(monitor.Options{
			Board:           b.ID,
			Target:          prober.URL(),
			Payload:         payload,
			StartupDelay:    cfg.Probe.StartupDelay(),
			Interval:        cfg.Probe.Interval(),
			ErrorDelay:      cfg.Probe.ErrorDelay(),
			ReloadGrace:     cfg.Probe.ReloadGrace(),
			HistoryCapacity: cfg.Probe.HistoryCapacity,
			Recorder:        connLog,
		}, prober, session, logger)
		sup.Start(ctx)
		defer sup.Stop()

		board := server.Board{Info: b, URL: url, Supervisor: sup}
		if styles != nil {
			board.Style = session
		}
		boards = append(boards, board)
		reloaders = append(reloaders, sup)
	}

	if interval := cfg.RefreshInterval(); interval > 0 {
		logger.Info("periodic page refresh enabled", zap.Duration("interval", interval))
		go RefreshLoop(ctx, clockwork.NewRealClock(), interval, reloaders)
	}

	srv := server.New(server.Options{
		Addr:   cfg.ListenAddr,
		Boards: boards,
		Log:    connLog,
		Styles: styles,
		Logger: logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", zap.String("addr", cfg.ListenAddr), zap.Int("boards", len(boards)))
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	logger.Info("shutting down")
	return nil
}

// RefreshLoop asks every reloader for a page reload once per interval until ctx is done.
func RefreshLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, reloaders []Reloader) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, r := range reloaders {
				r.RequestReload()
			}
		}
	}
}

// OverlayPayload returns the Base64 overlay payload: the configured payload, else the encoded
// overlay file, else the built-in page.
func OverlayPayload(p config.Probe) (string, error) {
	switch {
	case p.OverlayPayload != "":
		return p.OverlayPayload, nil
	case p.OverlayFile != "":
		payload, err := overlay.LoadFile(p.OverlayFile)
		if err != nil {
			return "", fmt.Errorf("overlay file: %w", err)
		}
		return payload, nil
	default:
		return overlay.Encode(overlay.DefaultPage()), nil
	}
}

func buildInjections(cfg config.Config) (browser.Injections, *storage.StyleStorage, error) {
	injections := browser.Injections{ViewMode: cfg.ViewMode}
	var styles *storage.StyleStorage

	if cfg.Style.Enabled {
		var err error
		styles, err = storage.NewStyleStorage(cfg.Style.File)
		if err != nil {
			return injections, nil, fmt.Errorf("stylesheet storage: %w", err)
		}
		css, err := styles.Load()
		if err != nil {
			return injections, nil, fmt.Errorf("load stylesheet: %w", err)
		}
		injections.Stylesheet = css
	}
	if cfg.Logo.Enabled {
		src, err := browser.ResolveLogoSource(cfg.Logo.Source)
		if err != nil {
			return injections, nil, err
		}
		injections.LogoSource = src
	}
	if cfg.AutoLogin.Enabled {
		injections.Login = &browser.Credentials{
			Username:    cfg.AutoLogin.Username,
			Password:    cfg.AutoLogin.Password,
			MaxAttempts: cfg.AutoLogin.MaxAttempts,
		}
	}
	return injections, styles, nil
}

// profileDir keeps one Chrome profile per board so sessions and logins do not collide.
func profileDir(base string, index int) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, "storage-"+strconv.Itoa(index+1))
}

func summarize(payload string) string {
	fragment, err := overlay.Decode(payload)
	if err != nil {
		return "<malformed>"
	}
	return overlay.Summary(fragment)
}

var _ Reloader = (*monitor.Supervisor)(nil)
