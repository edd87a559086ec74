package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"boardkiosk/internal/models"
)

var errDevTools = errors.New("websocket closed")

// fakeTab answers evaluations by script. Scripts it does not know about evaluate to the
// zero value.
type fakeTab struct {
	mu          sync.Mutex
	results     map[string]any
	evalCtxs    map[string][]context.Context
	addErr      error
	navigateErr error
	scripts     []string
	navigations []string
	reloads     int
	submits     int
}

func newFakeTab() *fakeTab {
	return &fakeTab{
		results:  make(map[string]any),
		evalCtxs: make(map[string][]context.Context),
	}
}

func (t *fakeTab) answer(script string, result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[script] = result
}

func (t *fakeTab) Evaluate(ctx context.Context, script string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evalCtxs[script] = append(t.evalCtxs[script], ctx)
	if script == submitLoginScript {
		t.submits++
	}
	switch out := res.(type) {
	case *bool:
		v, _ := t.results[script].(bool)
		*out = v
	case *string:
		v, _ := t.results[script].(string)
		*out = v
	}
	return nil
}

func (t *fakeTab) AddScript(_ context.Context, source string) (page.ScriptIdentifier, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.addErr != nil {
		return "", t.addErr
	}
	t.scripts = append(t.scripts, source)
	return page.ScriptIdentifier(fmt.Sprint(len(t.scripts))), nil
}

func (t *fakeTab) RemoveScript(context.Context, page.ScriptIdentifier) error {
	return nil
}

func (t *fakeTab) Navigate(_ context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.navigateErr != nil {
		return t.navigateErr
	}
	t.navigations = append(t.navigations, url)
	return nil
}

func (t *fakeTab) Reload(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reloads++
	return nil
}

func (t *fakeTab) contexts(script string) []context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]context.Context(nil), t.evalCtxs[script]...)
}

func (t *fakeTab) submitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submits
}

func newTestSession(t *testing.T, tb tab, injections Injections) *Session {
	t.Helper()
	s := newSession(context.Background(), tb, Config{
		Board:      models.Board{ID: "one"},
		URL:        "https://example.test/boards/one/follow",
		Injections: injections,
	}, zap.NewNop())
	s.pollEvery = time.Millisecond
	s.submitWait = time.Millisecond
	t.Cleanup(s.Close)
	return s
}

func TestReloadStopsViewModeSelectionOfPreviousDocument(t *testing.T) {
	tb := newFakeTab()
	s := newTestSession(t, tb, Injections{ViewMode: models.ViewModeLive})
	script := buildViewMode(string(models.ViewModeLive))

	require.NoError(t, s.Open(context.Background()))
	require.Eventually(t, func() bool { return len(tb.contexts(script)) > 0 }, time.Second, time.Millisecond)
	first := tb.contexts(script)[0]

	require.NoError(t, s.Reload(context.Background()))
	require.Eventually(t, func() bool { return first.Err() != nil }, time.Second, time.Millisecond)

	latest := tb.contexts(script)
	assert.NoError(t, latest[len(latest)-1].Err())
	assert.Equal(t, 1, tb.reloads)
}

func TestLoginIsSubmittedOnceAcrossReloads(t *testing.T) {
	creds := &Credentials{Username: "player", Password: "secret"}
	tb := newFakeTab()
	s := newTestSession(t, tb, Injections{Login: creds})
	fill := buildFillLogin(creds.Username, creds.Password)

	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Reload(context.Background()))
	require.NoError(t, s.Reload(context.Background()))

	tb.answer(fill, true)
	tb.answer(submitLoginScript, true)

	require.Eventually(t, func() bool { return tb.submitCount() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return tb.submitCount() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestOpenNavigatesWhenScriptRegistrationFails(t *testing.T) {
	tb := newFakeTab()
	tb.addErr = errDevTools
	s := newTestSession(t, tb, Injections{Stylesheet: "body{}", LogoSource: "https://example.test/logo.png"})

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, []string{s.URL()}, tb.navigations)
	assert.Empty(t, tb.scripts)

	// registration is retried the next time the page is opened
	tb.addErr = nil
	require.NoError(t, s.Open(context.Background()))
	assert.Len(t, tb.scripts, 2)
	require.NoError(t, s.Open(context.Background()))
	assert.Len(t, tb.scripts, 2)
}

func TestReloadOpensPageThatNeverLoaded(t *testing.T) {
	tb := newFakeTab()
	tb.navigateErr = errDevTools
	s := newTestSession(t, tb, Injections{})

	require.Error(t, s.Open(context.Background()))
	require.Error(t, s.Reload(context.Background()))
	assert.Zero(t, tb.reloads)

	tb.navigateErr = nil
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, []string{s.URL()}, tb.navigations)
	assert.Zero(t, tb.reloads)

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 1, tb.reloads)
	assert.Len(t, tb.navigations, 1)
}
