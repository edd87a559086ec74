// Package browser drives the Chrome tabs that show the boards.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"boardkiosk/internal/models"
	"boardkiosk/internal/monitor"
)

// ErrOverlayMissing is returned when the overlay element is not in the current document.
var ErrOverlayMissing = errors.New("overlay element not present")

var _ monitor.Page = (*Session)(nil)

// Config describes the browser session of one board.
type Config struct {
	Board      models.Board
	URL        string
	Headless   bool
	Kiosk      bool
	ExecPath   string
	ProfileDir string
	ZoomFactor float64
	Injections Injections
}

// Session is a dedicated Chrome instance showing a single board page.
type Session struct {
	cfg    Config
	logger *zap.Logger

	tab         tab
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	wg          sync.WaitGroup

	pollEvery  time.Duration
	submitWait time.Duration

	mu           sync.Mutex
	stylesheet   string
	styleScript  page.ScriptIdentifier
	scriptsReady bool
	navigated    bool
	loadCancel   context.CancelFunc
	loginSubmits int
}

// NewSession launches Chrome with its own profile directory.
func NewSession(parent context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("board", cfg.Board.ID))

	zoom := cfg.ZoomFactor
	if zoom <= 0 {
		zoom = 1
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("kiosk", cfg.Kiosk && !cfg.Headless),
		chromedp.Flag("noerrdialogs", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("force-device-scale-factor", strconv.FormatFloat(zoom, 'f', -1, 64)),
	)
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	s := newSession(tabCtx, chromeTab{ctx: tabCtx}, cfg, logger)
	s.tabCancel = tabCancel
	s.allocCancel = allocCancel
	return s, nil
}

func newSession(ctx context.Context, t tab, cfg Config, logger *zap.Logger) *Session {
	return &Session{
		cfg:         cfg,
		logger:      logger,
		tab:         t,
		ctx:         ctx,
		tabCancel:   func() {},
		allocCancel: func() {},
		pollEvery:   pollInterval,
		submitWait:  submitDelay,
		stylesheet:  cfg.Injections.Stylesheet,
	}
}

// Board returns the board shown in this session.
func (s *Session) Board() models.Board {
	return s.cfg.Board
}

// URL returns the page the session follows.
func (s *Session) URL() string {
	return s.cfg.URL
}

// Open registers the per-document scripts and navigates to the board page. A page that
// could not be opened is navigated to again by the next Reload.
func (s *Session) Open(ctx context.Context) error {
	if err := s.installDocumentScripts(ctx); err != nil {
		// the page is still worth showing without its customisations
		s.logger.Warn("document scripts not registered", zap.Error(err))
	}
	if err := s.tab.Navigate(ctx, s.cfg.URL); err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.URL, err)
	}
	s.setNavigated()
	s.logger.Info("board page opened", zap.String("url", s.cfg.URL))
	s.afterLoad()
	return nil
}

// Close shuts the browser down and waits for background injections to stop.
func (s *Session) Close() {
	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
	}
	s.mu.Unlock()

	s.tabCancel()
	s.allocCancel()
	s.wg.Wait()
}

// CreateOverlay inserts the hidden offline overlay into the current document.
func (s *Session) CreateOverlay(ctx context.Context, fragment string) error {
	return s.tab.Evaluate(ctx, buildCreateOverlay(fragment), nil)
}

// SetOverlayVisible shows or hides the overlay. Hiding a missing overlay is not an error.
func (s *Session) SetOverlayVisible(ctx context.Context, visible bool) error {
	var found bool
	if err := s.tab.Evaluate(ctx, buildOverlayVisibility(visible), &found); err != nil {
		return err
	}
	if visible && !found {
		return ErrOverlayMissing
	}
	return nil
}

// Reload reloads the page bypassing the cache and waits for the new document to load.
// When the board page was never reached it is opened instead.
func (s *Session) Reload(ctx context.Context) error {
	if !s.isNavigated() {
		s.logger.Info("board page was never opened, opening it")
		return s.Open(ctx)
	}
	if err := s.tab.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.logger.Info("board page reloaded")
	s.afterLoad()
	return nil
}

// UpdateStylesheet replaces the custom stylesheet in the current and all future documents.
func (s *Session) UpdateStylesheet(ctx context.Context, css string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.styleScript != "" {
		if err := s.tab.RemoveScript(ctx, s.styleScript); err != nil {
			return fmt.Errorf("remove stylesheet script: %w", err)
		}
		s.styleScript = ""
	}

	script := buildStyle(base64.StdEncoding.EncodeToString([]byte(css)))
	if css != "" {
		id, err := s.tab.AddScript(ctx, script)
		if err != nil {
			return fmt.Errorf("register stylesheet: %w", err)
		}
		s.styleScript = id
	}
	s.stylesheet = css
	if err := s.tab.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("apply stylesheet: %w", err)
	}
	return nil
}

// installDocumentScripts registers the stylesheet and logo scripts once. A failed attempt is
// repeated on the next Open.
func (s *Session) installDocumentScripts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scriptsReady {
		return nil
	}
	if s.stylesheet != "" && s.styleScript == "" {
		id, err := s.tab.AddScript(ctx, buildStyle(base64.StdEncoding.EncodeToString([]byte(s.stylesheet))))
		if err != nil {
			return fmt.Errorf("register stylesheet: %w", err)
		}
		s.styleScript = id
	}
	if src := s.cfg.Injections.LogoSource; src != "" {
		if _, err := s.tab.AddScript(ctx, buildLogo(src)); err != nil {
			return fmt.Errorf("register logo: %w", err)
		}
	}
	s.scriptsReady = true
	return nil
}

func (s *Session) setNavigated() {
	s.mu.Lock()
	s.navigated = true
	s.mu.Unlock()
}

func (s *Session) isNavigated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigated
}

// afterLoad starts the injections that wait for page content in the background. The
// injections of the previous document are stopped first.
func (s *Session) afterLoad() {
	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
	}
	loadCtx, cancel := context.WithCancel(s.ctx)
	s.loadCancel = cancel
	s.mu.Unlock()

	if s.cfg.Injections.Login != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.autoLogin(loadCtx)
		}()
	}
	if s.cfg.Injections.ViewMode != models.ViewModeNone {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.selectViewMode(loadCtx)
		}()
	}
}
