package webview

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/errorpage"
	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/urlutil"
)

// Page adapts one engine page. It implements engine.PageDelegate (and
// engine.AuthDelegate); the engine driver calls all delegate methods
// synchronously on its event goroutine, Shutdown may come from any
// goroutine.
type Page struct {
	view     *View
	engine   engine.Page
	config   func() *config.Config
	policy   *policy.Policy
	tabState *TabState
	log      *logging.Logger
	js       *logging.Logger
	bus      *events.Bus
	metrics  *metrics.Metrics

	// shuttingDown is monotonic: set once by Shutdown, never reset.
	shuttingDown atomic.Bool
}

// Unwrap returns the wrapped engine page.
func (p *Page) Unwrap() engine.Page { return p.engine }

// TabState is the per-tab click-target policy the shell mutates.
func (p *Page) TabState() *TabState { return p.tabState }

// ShuttingDown reports whether Shutdown has run.
func (p *Page) ShuttingDown() bool { return p.shuttingDown.Load() }

// Shutdown marks the page as going away, announces it (aborting any
// prompt in flight) and closes the wrapped engine page. Idempotent;
// only the first call does anything.
func (p *Page) Shutdown() {
	if p.shuttingDown.Swap(true) {
		return
	}
	p.log.Debug("shutting down")
	events.Emit(p.bus, events.TopicShuttingDown, struct{}{})

	ctx, cancel := context.WithTimeout(context.Background(), closePageTimeout)
	defer cancel()
	if err := p.engine.Close(ctx); err != nil {
		p.log.Warn("engine page close failed", zap.Error(err))
	}
}

// CertificateError decides whether the engine should load past a TLS
// failure. Overridable errors go to the user; everything else is
// refused. When the load is refused and the failure belongs to the page
// itself (not a subresource), the rendered error page replaces the
// document.
func (p *Page) CertificateError(certErr *engine.CertificateError) bool {
	events.Emit(p.bus, events.TopicCertificateError, certErr)
	p.log.Debug("certificate error",
		zap.String("code", certErr.Code),
		zap.String("url", urlString(certErr.URL)),
		zap.Bool("overridable", certErr.Overridable()))

	page, renderErr := errorpage.Render(errorpage.ForCertificate(certErr))
	if renderErr != nil {
		p.log.Error("error page render failed", zap.Error(renderErr))
	}

	var ignore bool
	if certErr.Overridable() {
		ctx, cancel := p.abortContext()
		ignore = p.policy.IgnoreCertificateErrors(ctx, certErr.URL, certErr)
		cancel()
	} else {
		p.log.Error("non-overridable certificate error",
			zap.String("code", certErr.Code),
			zap.String("url", urlString(certErr.URL)))
	}
	p.metrics.RecordCertificateError(certErr.Overridable(), ignore)

	// The error may have come from any resource on the page; only
	// replace the document when the failing URL is the page we asked
	// for. The scheme is ignored because redirects commonly flip it.
	requested := p.engine.RequestedURL()
	p.log.Debug("certificate error decision",
		zap.Bool("ignore", ignore),
		zap.String("url", urlString(certErr.URL)),
		zap.String("requested", urlString(requested)))
	if !ignore && renderErr == nil && urlutil.MatchesIgnoreScheme(certErr.URL, requested) {
		ctx, cancel := context.WithTimeout(context.Background(), setContentTimeout)
		defer cancel()
		if err := p.engine.SetContent(ctx, page); err != nil {
			p.log.Error("applying error page failed", zap.Error(err))
		}
	}

	return ignore
}

// Dialog answers a JavaScript dialog by dispatching to the matching
// policy call. A policy.ErrDeferToEngine escapes unchanged so the
// driver falls back to its native default, as does before-unload, which
// the shell never intercepts.
func (p *Page) Dialog(d engine.Dialog) (engine.DialogDecision, error) {
	switch d.Kind {
	case engine.DialogAlert:
		if err := p.JavaScriptAlert(d.URL, d.Message); err != nil {
			p.metrics.RecordDialog(d.Kind.String(), "deferred")
			return engine.DialogDecision{}, err
		}
		p.metrics.RecordDialog(d.Kind.String(), "accepted")
		return engine.DialogDecision{Accept: true}, nil

	case engine.DialogConfirm:
		ok, err := p.JavaScriptConfirm(d.URL, d.Message)
		if err != nil {
			p.metrics.RecordDialog(d.Kind.String(), "deferred")
			return engine.DialogDecision{}, err
		}
		p.metrics.RecordDialog(d.Kind.String(), dialogOutcome(ok))
		return engine.DialogDecision{Accept: ok}, nil

	case engine.DialogPrompt:
		text, ok, err := p.JavaScriptPrompt(d.URL, d.Message, d.DefaultText)
		if err != nil {
			p.metrics.RecordDialog(d.Kind.String(), "deferred")
			return engine.DialogDecision{}, err
		}
		p.metrics.RecordDialog(d.Kind.String(), dialogOutcome(ok))
		return engine.DialogDecision{Accept: ok, Text: text}, nil

	default:
		p.metrics.RecordDialog(d.Kind.String(), "deferred")
		return engine.DialogDecision{}, engine.ErrNotHandled
	}
}

func dialogOutcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "dismissed"
}

// JavaScriptConfirm answers confirm(). A page that is shutting down
// answers no without consulting policy.
func (p *Page) JavaScriptConfirm(pageURL *url.URL, msg string) (bool, error) {
	if p.shuttingDown.Load() {
		return false, nil
	}
	ctx, cancel := p.abortContext()
	defer cancel()
	return p.policy.JavaScriptConfirm(ctx, pageURL, msg)
}

// JavaScriptAlert acknowledges alert(). A page that is shutting down
// acknowledges silently without consulting policy.
func (p *Page) JavaScriptAlert(pageURL *url.URL, msg string) error {
	if p.shuttingDown.Load() {
		return nil
	}
	ctx, cancel := p.abortContext()
	defer cancel()
	return p.policy.JavaScriptAlert(ctx, pageURL, msg)
}

// JavaScriptPrompt answers prompt(). A page that is shutting down
// dismisses without consulting policy.
func (p *Page) JavaScriptPrompt(pageURL *url.URL, msg, defaultText string) (string, bool, error) {
	if p.shuttingDown.Load() {
		return "", false, nil
	}
	ctx, cancel := p.abortContext()
	defer cancel()
	return p.policy.JavaScriptPrompt(ctx, pageURL, msg, defaultText)
}

// ConsoleMessage forwards page console output to the js logger as
// "[source:line] text", subject to the content.js_console threshold.
func (p *Page) ConsoleMessage(msg engine.ConsoleMessage) {
	p.metrics.RecordConsoleMessage(msg.Level.String())

	threshold, ok := consoleThreshold(p.config().Content.JSConsole)
	if !ok || msg.Level < threshold {
		return
	}

	line := fmt.Sprintf("[%s:%d] %s", msg.Source, msg.Line, msg.Text)
	switch msg.Level {
	case engine.ConsoleDebug:
		p.js.Debug(line)
	case engine.ConsoleInfo:
		p.js.Info(line)
	case engine.ConsoleWarning:
		p.js.Warn(line)
	default:
		p.js.Error(line)
	}
}

// consoleThreshold maps content.js_console to the minimum forwarded
// level. ok is false when the setting drops everything ("none").
func consoleThreshold(setting string) (engine.ConsoleLevel, bool) {
	switch setting {
	case "debug":
		return engine.ConsoleDebug, true
	case "info":
		return engine.ConsoleInfo, true
	case "warning":
		return engine.ConsoleWarning, true
	case "error":
		return engine.ConsoleError, true
	default:
		return 0, false
	}
}

// AcceptNavigation filters navigations before the engine commits them.
// Only link clicks are ever rejected: the click is announced on the
// bus, then accepted only when the URL is valid and the tab's click
// target is the view itself. Clicks aimed elsewhere are rejected here
// because the shell re-dispatches them to the right place.
func (p *Page) AcceptNavigation(req engine.NavigationRequest) bool {
	target := p.tabState.CombinedTarget()
	p.log.Debug("navigation request",
		zap.String("url", urlString(req.URL)),
		zap.Stringer("type", req.Type),
		zap.Stringer("target", target),
		zap.Bool("main_frame", req.IsMainFrame))

	if req.Type != engine.NavigationLinkClicked {
		p.metrics.RecordNavigation(req.Type.String(), true)
		return true
	}

	events.Emit(p.bus, events.TopicLinkClicked, req.URL)

	accept := urlutil.IsValid(req.URL) && target == engine.TargetNormal
	p.metrics.RecordNavigation(req.Type.String(), accept)
	return accept
}

// CreateWindow forwards the engine's window request to the owning view.
func (p *Page) CreateWindow(req engine.WindowRequest) (engine.Page, error) {
	p.log.Debug("page requested window",
		zap.Stringer("kind", req.Kind),
		zap.String("url", urlString(req.URL)),
		zap.Bool("user_gesture", req.UserGesture))
	return p.view.CreateWindow(req.Kind)
}

// LoadStarted announces a new main-frame load, aborting prompts that
// belong to the previous document.
func (p *Page) LoadStarted(u *url.URL) {
	p.log.Debug("load started", zap.String("url", urlString(u)))
	events.Emit(p.bus, events.TopicLoadStarted, u)
}

// LoadFinished logs the outcome of a main-frame load.
func (p *Page) LoadFinished(u *url.URL, ok bool) {
	p.log.Debug("load finished", zap.String("url", urlString(u)), zap.Bool("ok", ok))
}

// AuthenticationRequired answers an HTTP authentication challenge, or
// declines it when the page is going away.
func (p *Page) AuthenticationRequired(u *url.URL, realm string) (string, string, bool) {
	if p.shuttingDown.Load() {
		return "", "", false
	}
	ctx, cancel := p.abortContext()
	defer cancel()
	creds, ok := p.policy.AuthenticationRequired(ctx, u, realm)
	return creds.User, creds.Password, ok
}

// abortContext returns a context cancelled when the page starts a new
// load or shuts down, releasing any prompt blocked on it. The returned
// cancel must be called to detach from the bus.
func (p *Page) abortContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	abort, detach := events.AbortChannel(p.bus, events.TopicLoadStarted, events.TopicShuttingDown)

	done := make(chan struct{})
	go func() {
		select {
		case <-abort:
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			close(done)
			detach()
			cancel()
		})
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
