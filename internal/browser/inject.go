package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"boardkiosk/internal/models"
)

const (
	pollInterval = 500 * time.Millisecond
	pollAttempts = 120
	submitDelay  = 800 * time.Millisecond
)

// Injections are the page customisations applied on every load.
type Injections struct {
	Stylesheet string
	// LogoSource is an image URL or data URI.
	LogoSource string
	ViewMode   models.ViewMode
	Login      *Credentials
}

// Credentials fill the login form when it shows up.
type Credentials struct {
	Username string
	Password string
	// MaxAttempts limits the submits per session so bad credentials do not hammer the server.
	MaxAttempts int
}

// ResolveLogoSource turns a local image file into a data URI. URLs and data URIs are returned as is.
func ResolveLogoSource(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil
	}
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return source, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read logo: %w", err)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(source)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *Session) autoLogin(ctx context.Context) {
	creds := s.cfg.Injections.Login
	if !s.loginAllowed(creds.MaxAttempts) {
		s.logger.Debug("login attempts exhausted, not filling form")
		return
	}

	script := buildFillLogin(creds.Username, creds.Password)
	err := Poll(ctx, s.pollEvery, pollAttempts, func(ctx context.Context) (bool, error) {
		var filled bool
		if err := s.tab.Evaluate(ctx, script, &filled); err != nil {
			return false, err
		}
		return filled, nil
	})
	switch {
	case errors.Is(err, ErrPollExhausted):
		s.logger.Debug("no login form appeared")
		return
	case err != nil:
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.submitWait):
	}

	var submitted bool
	if err := s.tab.Evaluate(ctx, submitLoginScript, &submitted); err != nil {
		s.logger.Warn("submit login form", zap.Error(err))
		return
	}
	if submitted {
		attempt := s.countLoginSubmit()
		s.logger.Info("login form submitted", zap.Int("attempt", attempt))
	}
}

func (s *Session) loginAllowed(maxAttempts int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maxAttempts <= 0 || s.loginSubmits < maxAttempts
}

func (s *Session) countLoginSubmit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginSubmits++
	return s.loginSubmits
}

func (s *Session) selectViewMode(ctx context.Context) {
	label := string(s.cfg.Injections.ViewMode)
	script := buildViewMode(label)

	err := Poll(ctx, s.pollEvery, pollAttempts, func(ctx context.Context) (bool, error) {
		var result string
		if err := s.tab.Evaluate(ctx, script, &result); err != nil {
			return false, err
		}
		switch result {
		case "clicked":
			s.logger.Info("view mode selected", zap.String("mode", label))
			return true, nil
		case "active":
			return true, nil
		}
		return false, nil
	})
	if errors.Is(err, ErrPollExhausted) {
		s.logger.Warn("view mode button not found", zap.String("mode", label), zap.Error(err))
	}
}
