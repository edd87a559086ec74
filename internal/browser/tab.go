package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	actionTimeout = 15 * time.Second
	loadTimeout   = 60 * time.Second
)

// tab is the set of DevTools operations a session issues against its page.
type tab interface {
	Evaluate(ctx context.Context, script string, res any) error
	AddScript(ctx context.Context, source string) (page.ScriptIdentifier, error)
	RemoveScript(ctx context.Context, id page.ScriptIdentifier) error
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
}

// chromeTab runs actions on a chromedp tab context. Every call is bounded by a timeout and
// also ends when the caller's ctx does.
type chromeTab struct {
	ctx context.Context
}

func (t chromeTab) Evaluate(ctx context.Context, script string, res any) error {
	return t.run(ctx, actionTimeout, chromedp.Evaluate(script, res))
}

func (t chromeTab) AddScript(ctx context.Context, source string) (page.ScriptIdentifier, error) {
	var id page.ScriptIdentifier
	err := t.run(ctx, actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, err = page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))
	return id, err
}

func (t chromeTab) RemoveScript(ctx context.Context, id page.ScriptIdentifier) error {
	return t.run(ctx, actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.RemoveScriptToEvaluateOnNewDocument(id).Do(ctx)
	}))
}

func (t chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, loadTimeout, chromedp.Navigate(url))
}

// Reload reloads bypassing the cache and waits for the new document to load.
func (t chromeTab) Reload(ctx context.Context) error {
	runCtx, cancel := t.scoped(ctx, loadTimeout)
	defer cancel()

	_, err := chromedp.RunResponse(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.Reload().WithIgnoreCache(true).Do(ctx)
	}))
	return err
}

func (t chromeTab) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (t chromeTab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := t.scoped(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
