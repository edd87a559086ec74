package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"boardkiosk/internal/models"
	"boardkiosk/internal/overlay"
)

const subscriberBuffer = 16

// ConnectivitySource exposes connectivity probe results.
type ConnectivitySource interface {
	State() models.ConnectivityState
	Latest() (models.ConnectivityStatus, bool)
	History() []models.ConnectivityStatus
	HistorySince(time.Time) []models.ConnectivityStatus
}

// Page is the document the supervisor keeps in sync with the connectivity state.
type Page interface {
	// CreateOverlay inserts the offline overlay into the document, hidden.
	CreateOverlay(ctx context.Context, fragment string) error
	SetOverlayVisible(ctx context.Context, visible bool) error
	// Reload forces a reload of the page bypassing the cache.
	Reload(ctx context.Context) error
}

// Recorder receives every probe sample and state change.
type Recorder interface {
	RecordSample(models.ConnectivityStatus) error
	RecordTransition(models.Transition) error
}

// Options configures a Supervisor. Zero durations fall back to the defaults.
type Options struct {
	Board           string
	Target          string
	Payload         string
	StartupDelay    time.Duration
	Interval        time.Duration
	ErrorDelay      time.Duration
	ReloadGrace     time.Duration
	HistoryCapacity int
	Clock           clockwork.Clock
	Recorder        Recorder
}

func (o *Options) setDefaults() {
	if o.StartupDelay <= 0 {
		o.StartupDelay = 2 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.ErrorDelay <= 0 {
		o.ErrorDelay = 10 * time.Second
	}
	if o.ReloadGrace <= 0 {
		o.ReloadGrace = time.Second
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = 2048
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Supervisor polls the liveness endpoint and keeps the page's offline overlay in sync.
//
// Probes run strictly one after another on a single goroutine; the next probe is only
// scheduled once the previous one has been handled. The pending reload after a recovery
// is serviced by the same goroutine.
type Supervisor struct {
	opts     Options
	prober   Prober
	page     Page
	logger   *zap.Logger
	clock    clockwork.Clock
	fragment string

	// owned by the loop goroutine
	overlayCreated bool
	reloadDue      <-chan time.Time
	reloadReq      chan struct{}

	mu      sync.RWMutex
	state   models.ConnectivityState
	latest  *models.ConnectivityStatus
	history []models.ConnectivityStatus

	subMu       sync.Mutex
	subscribers map[chan models.Transition]struct{}

	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewSupervisor decodes the overlay payload and prepares a supervisor in the online state.
// A malformed payload is logged and replaced by empty overlay content.
func NewSupervisor(opts Options, prober Prober, page Page, logger *zap.Logger) *Supervisor {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("board", opts.Board))

	fragment, err := overlay.Decode(opts.Payload)
	if err != nil {
		logger.Warn("overlay payload could not be decoded, continuing with empty overlay", zap.Error(err))
		fragment = ""
	}

	return &Supervisor{
		opts:        opts,
		prober:      prober,
		page:        page,
		logger:      logger,
		clock:       opts.Clock,
		fragment:    fragment,
		state:       models.StateOnline,
		subscribers: make(map[chan models.Transition]struct{}),
		reloadReq:   make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
	}
}

// RequestReload asks the loop to reload the page between probes. Requests made while one
// is already pending are merged.
func (s *Supervisor) RequestReload() {
	select {
	case s.reloadReq <- struct{}{}:
	default:
	}
}

// Start launches the probe loop. The first probe runs after the startup delay.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop terminates the probe loop and waits for it to exit.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.doneCh
}

// Board returns the board id the supervisor belongs to.
func (s *Supervisor) Board() string {
	return s.opts.Board
}

// OverlayContent returns the decoded overlay fragment.
func (s *Supervisor) OverlayContent() string {
	return s.fragment
}

// State returns the current connectivity state.
func (s *Supervisor) State() models.ConnectivityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Latest returns the most recent probe sample.
func (s *Supervisor) Latest() (models.ConnectivityStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return models.ConnectivityStatus{}, false
	}
	return *s.latest, true
}

// History returns up to HistoryCapacity previous probe samples.
func (s *Supervisor) History() []models.ConnectivityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	out := make([]models.ConnectivityStatus, len(s.history))
	copy(out, s.history)
	return out
}

// HistorySince returns samples whose timestamp is >= cutoff.
func (s *Supervisor) HistorySince(cutoff time.Time) []models.ConnectivityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	idx := 0
	if !cutoff.IsZero() {
		idx = sort.Search(len(s.history), func(i int) bool {
			return !s.history[i].CheckedAt.Before(cutoff)
		})
	}
	if idx >= len(s.history) {
		return nil
	}
	out := make([]models.ConnectivityStatus, len(s.history)-idx)
	copy(out, s.history[idx:])
	return out
}

// Subscribe returns a channel receiving every state transition and a function to release it.
// Slow subscribers miss transitions rather than block the loop.
func (s *Supervisor) Subscribe() (<-chan models.Transition, func()) {
	ch := make(chan models.Transition, subscriberBuffer)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// RunOnce performs a single probe, applies its outcome and returns the sample together
// with the delay before the next probe should run.
func (s *Supervisor) RunOnce(ctx context.Context) (status models.ConnectivityStatus, next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("probe orchestration failed", zap.Any("panic", r))
			next = s.opts.ErrorDelay
		}
	}()

	started := s.clock.Now()
	err := s.prober.Probe(ctx)
	if ctx.Err() != nil {
		return status, s.opts.Interval
	}

	status = models.ConnectivityStatus{
		Board:     s.opts.Board,
		Target:    s.opts.Target,
		CheckedAt: s.clock.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
		s.logger.Debug("liveness probe failed", zap.Error(err))
	} else {
		status.OK = true
		status.LatencyMs = s.clock.Since(started).Milliseconds()
	}
	s.record(status)

	if err := s.apply(ctx, status.OK); err != nil {
		s.logger.Warn("could not apply connectivity change to page", zap.Error(err))
		return status, s.opts.ErrorDelay
	}
	return status, s.opts.Interval
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.doneCh)

	wait := s.clock.After(s.opts.StartupDelay)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wait:
			_, next := s.RunOnce(ctx)
			wait = s.clock.After(next)
		case <-s.reloadDue:
			s.reloadDue = nil
			s.reload(ctx)
		case <-s.reloadReq:
			s.reload(ctx)
		}
	}
}

func (s *Supervisor) apply(ctx context.Context, reachable bool) error {
	current := s.State()
	switch {
	case reachable && current == models.StateOffline:
		s.logger.Info("connection restored, hiding offline overlay")
		if err := s.page.SetOverlayVisible(ctx, false); err != nil {
			return fmt.Errorf("hide overlay: %w", err)
		}
		s.transition(models.StateOnline)
		s.reloadDue = s.clock.After(s.opts.ReloadGrace)
	case !reachable && current == models.StateOnline:
		s.logger.Warn("connection lost, displaying offline overlay")
		if err := s.showOverlay(ctx); err != nil {
			return err
		}
		s.transition(models.StateOffline)
	case !reachable && !s.overlayCreated:
		// a reload or a failed show dropped the overlay while still offline
		s.logger.Info("restoring offline overlay")
		if err := s.showOverlay(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) showOverlay(ctx context.Context) error {
	if !s.overlayCreated {
		if err := s.page.CreateOverlay(ctx, s.fragment); err != nil {
			return fmt.Errorf("create overlay: %w", err)
		}
		s.overlayCreated = true
	}
	if err := s.page.SetOverlayVisible(ctx, true); err != nil {
		// the element may have gone with a navigation the page did on its own
		s.overlayCreated = false
		return fmt.Errorf("show overlay: %w", err)
	}
	return nil
}

func (s *Supervisor) reload(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("page reload failed", zap.Any("panic", r))
		}
	}()

	err := s.page.Reload(ctx)
	// even a failed reload may have replaced the document and the overlay with it
	s.overlayCreated = false
	if err != nil {
		s.logger.Warn("page reload failed", zap.Error(err))
		return
	}
	if s.State() == models.StateOffline {
		if err := s.showOverlay(ctx); err != nil {
			s.logger.Warn("could not restore overlay after reload", zap.Error(err))
		}
	}
}

func (s *Supervisor) record(status models.ConnectivityStatus) {
	s.mu.Lock()
	s.latest = &status
	s.history = append(s.history, status)
	if len(s.history) > s.opts.HistoryCapacity {
		s.history = s.history[len(s.history)-s.opts.HistoryCapacity:]
	}
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.RecordSample(status); err != nil {
			s.logger.Warn("record probe sample", zap.Error(err))
		}
	}
}

func (s *Supervisor) transition(to models.ConnectivityState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	event := models.Transition{
		Board: s.opts.Board,
		From:  from,
		To:    to,
		At:    s.clock.Now().UTC(),
	}
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.RecordTransition(event); err != nil {
			s.logger.Warn("record transition", zap.Error(err))
		}
	}

	s.subMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	s.subMu.Unlock()
}
