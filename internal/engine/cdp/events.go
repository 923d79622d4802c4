package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	cdplog "github.com/chromedp/cdproto/log"

	"github.com/perchbrowser/perch/internal/engine"
)

const eventQueueSize = 256

// install registers the protocol listener and starts the dispatcher
// goroutine. The listener must never block, so it only enqueues.
func (p *Page) install() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev.(type) {
		case *page.EventJavascriptDialogOpening,
			*page.EventWindowOpen,
			*page.EventFrameRequestedNavigation,
			*page.EventFrameStartedLoading,
			*page.EventFrameStoppedLoading,
			*page.EventFrameNavigated,
			*cdpruntime.EventConsoleAPICalled,
			*cdplog.EventEntryAdded,
			*network.EventRequestWillBeSent,
			*network.EventLoadingFailed,
			*network.EventLoadingFinished,
			*fetch.EventRequestPaused,
			*fetch.EventAuthRequired:
			p.enqueue(ev)
		}
	})
	go p.dispatch()
}

func (p *Page) enqueue(ev any) {
	select {
	case p.events <- ev:
	default:
		// Dropping beats blocking the protocol reader; the delegate
		// may be sitting in a prompt.
		p.log.Warn("event queue full, dropping engine event",
			zap.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (p *Page) dispatch() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.events:
			p.handleEvent(ev)
		}
	}
}

func (p *Page) handleEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		p.onDialog(ev)
	case *page.EventWindowOpen:
		p.onWindowOpen(ev)
	case *page.EventFrameRequestedNavigation:
		p.onNavigationRequested(ev)
	case *page.EventFrameStartedLoading:
		p.onLoadStarted(ev)
	case *page.EventFrameStoppedLoading:
		p.onLoadFinished(ev)
	case *page.EventFrameNavigated:
		p.onFrameNavigated(ev)
	case *cdpruntime.EventConsoleAPICalled:
		p.onConsoleAPI(ev)
	case *cdplog.EventEntryAdded:
		p.onLogEntry(ev)
	case *network.EventRequestWillBeSent:
		p.onRequestWillBeSent(ev)
	case *network.EventLoadingFailed:
		p.onLoadingFailed(ev)
	case *network.EventLoadingFinished:
		p.untrackRequest(ev.RequestID)
	case *fetch.EventRequestPaused:
		p.onRequestPaused(ev)
	case *fetch.EventAuthRequired:
		p.onAuthRequired(ev)
	}
}

func (p *Page) onDialog(ev *page.EventJavascriptDialogOpening) {
	kind := dialogKind(ev.Type)
	decision, err := p.delegateRef().Dialog(engine.Dialog{
		Kind:        kind,
		URL:         parseURL(ev.URL),
		Message:     ev.Message,
		DefaultText: ev.DefaultPrompt,
	})
	if err != nil {
		// Native default: acknowledge alerts, refuse everything else.
		decision = engine.DialogDecision{Accept: kind == engine.DialogAlert}
	}

	params := page.HandleJavaScriptDialog(decision.Accept)
	if kind == engine.DialogPrompt && decision.Accept {
		params = params.WithPromptText(decision.Text)
	}
	if err := p.run(params); err != nil {
		p.log.Error("answering dialog failed",
			zap.Stringer("kind", kind), zap.Error(err))
	}
}

func (p *Page) onWindowOpen(ev *page.EventWindowOpen) {
	req := engine.WindowRequest{
		Kind:        windowKind(ev.WindowFeatures),
		URL:         parseURL(ev.URL),
		UserGesture: ev.UserGesture,
	}

	opened, err := p.delegateRef().CreateWindow(req)
	if err != nil {
		p.log.Error("window request failed",
			zap.Stringer("kind", req.Kind), zap.Error(err))
		return
	}
	if opened == nil || req.URL == nil {
		return
	}
	// The engine blocked the contents; the shell's page carries the
	// load instead.
	ctx, cancel := context.WithTimeout(p.ctx, opTimeout)
	defer cancel()
	if err := opened.Navigate(ctx, req.URL.String()); err != nil {
		p.log.Error("loading popup failed",
			zap.Stringer("url", req.URL), zap.Error(err))
	}
}

func (p *Page) onNavigationRequested(ev *page.EventFrameRequestedNavigation) {
	req := engine.NavigationRequest{
		URL:         parseURL(ev.URL),
		Type:        navigationType(ev.Reason),
		IsMainFrame: ev.FrameID == p.mainFrame(),
	}
	if p.delegateRef().AcceptNavigation(req) {
		return
	}
	if err := p.run(page.StopLoading()); err != nil {
		p.log.Error("cancelling navigation failed", zap.Error(err))
	}
}

func (p *Page) onLoadStarted(ev *page.EventFrameStartedLoading) {
	if ev.FrameID != p.mainFrame() {
		return
	}
	p.mu.Lock()
	p.loadFailed = false
	u := p.requestedURL
	p.mu.Unlock()
	p.delegateRef().LoadStarted(u)
}

func (p *Page) onLoadFinished(ev *page.EventFrameStoppedLoading) {
	if ev.FrameID != p.mainFrame() {
		return
	}
	p.mu.Lock()
	ok := !p.loadFailed
	u := p.currentURL
	p.mu.Unlock()
	p.delegateRef().LoadFinished(u, ok)
}

func (p *Page) onFrameNavigated(ev *page.EventFrameNavigated) {
	f := ev.Frame
	if f == nil || f.ParentID != "" {
		return
	}
	p.mu.Lock()
	p.frameID = f.ID
	p.currentURL = parseURL(f.URL)
	p.mu.Unlock()
}

func (p *Page) onConsoleAPI(ev *cdpruntime.EventConsoleAPICalled) {
	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		parts = append(parts, remoteObjectText(arg))
	}
	msg := engine.ConsoleMessage{
		Level: consoleAPILevel(ev.Type),
		Text:  strings.Join(parts, " "),
	}
	if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
		frame := ev.StackTrace.CallFrames[0]
		msg.Source = frame.URL
		msg.Line = frame.LineNumber + 1
	}
	p.delegateRef().ConsoleMessage(msg)
}

// onLogEntry forwards browser-side log entries (network failures,
// deprecations, violations); script console calls arrive through
// onConsoleAPI instead.
func (p *Page) onLogEntry(ev *cdplog.EventEntryAdded) {
	e := ev.Entry
	if e == nil {
		return
	}
	p.delegateRef().ConsoleMessage(engine.ConsoleMessage{
		Level:  logEntryLevel(e.Level),
		Text:   e.Text,
		Source: e.URL,
		Line:   e.LineNumber,
	})
}

func (p *Page) onRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	u := parseURL(ev.Request.URL)
	p.mu.Lock()
	p.requests[ev.RequestID] = u
	if ev.Type == network.ResourceTypeDocument && ev.FrameID == p.frameID && ev.RedirectResponse == nil {
		p.requestedURL = u
	}
	p.mu.Unlock()
}

func (p *Page) onLoadingFailed(ev *network.EventLoadingFailed) {
	u := p.takeRequest(ev.RequestID)

	if ev.Type == network.ResourceTypeDocument && !ev.Canceled {
		p.mu.Lock()
		p.loadFailed = true
		p.mu.Unlock()
	}

	code := strings.TrimPrefix(ev.ErrorText, "net::")
	if engine.IsCertificateCode(code) {
		p.onCertificateError(code, u)
	}
}

func (p *Page) onCertificateError(code string, u *url.URL) {
	certErr := &engine.CertificateError{Code: code, URL: u}
	if !p.delegateRef().CertificateError(certErr) {
		return
	}
	// The protocol has no per-error override: trust everything on this
	// page from here on and retry the load.
	if err := p.run(security.SetIgnoreCertificateErrors(true), chromedp.Reload()); err != nil {
		p.log.Error("certificate override failed", zap.Error(err))
	}
}

func (p *Page) onRequestPaused(ev *fetch.EventRequestPaused) {
	if err := p.run(fetch.ContinueRequest(ev.RequestID)); err != nil {
		p.log.Error("continuing paused request failed", zap.Error(err))
	}
}

func (p *Page) onAuthRequired(ev *fetch.EventAuthRequired) {
	resp := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseCancelAuth,
	}
	if ad, ok := p.delegateRef().(engine.AuthDelegate); ok && ev.AuthChallenge != nil {
		challenge := ev.AuthChallenge
		user, password, answered := ad.AuthenticationRequired(parseURL(challenge.Origin), challenge.Realm)
		if answered {
			resp = &fetch.AuthChallengeResponse{
				Response: fetch.AuthChallengeResponseResponseProvideCredentials,
				Username: user,
				Password: password,
			}
		}
	}
	if err := p.run(fetch.ContinueWithAuth(ev.RequestID, resp)); err != nil {
		p.log.Error("answering auth challenge failed", zap.Error(err))
	}
}

func (p *Page) takeRequest(id network.RequestID) *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.requests[id]
	delete(p.requests, id)
	return u
}

func (p *Page) untrackRequest(id network.RequestID) {
	p.mu.Lock()
	delete(p.requests, id)
	p.mu.Unlock()
}

func dialogKind(t page.DialogType) engine.DialogKind {
	switch t {
	case page.DialogTypeConfirm:
		return engine.DialogConfirm
	case page.DialogTypePrompt:
		return engine.DialogPrompt
	case page.DialogTypeBeforeunload:
		return engine.DialogBeforeUnload
	default:
		return engine.DialogAlert
	}
}

// windowKind classifies a window.open request. Explicit size or
// position features make it a dialog, everything else is a tab.
func windowKind(features []string) engine.WindowKind {
	for _, f := range features {
		name, _, _ := strings.Cut(f, "=")
		switch strings.TrimSpace(name) {
		case "popup", "width", "height", "left", "top":
			return engine.KindDialog
		}
	}
	return engine.KindTab
}

func navigationType(r page.ClientNavigationReason) engine.NavigationType {
	switch r {
	case page.ClientNavigationReasonAnchorClick:
		return engine.NavigationLinkClicked
	case page.ClientNavigationReasonFormSubmissionGet,
		page.ClientNavigationReasonFormSubmissionPost:
		return engine.NavigationFormSubmitted
	case page.ClientNavigationReasonReload:
		return engine.NavigationReload
	case page.ClientNavigationReasonHTTPHeaderRefresh,
		page.ClientNavigationReasonMetaTagRefresh:
		return engine.NavigationRedirect
	case page.ClientNavigationReasonInitialFrameNavigation:
		return engine.NavigationTyped
	default:
		return engine.NavigationOther
	}
}

func consoleAPILevel(t cdpruntime.APIType) engine.ConsoleLevel {
	switch t {
	case cdpruntime.APITypeDebug:
		return engine.ConsoleDebug
	case cdpruntime.APITypeWarning:
		return engine.ConsoleWarning
	case cdpruntime.APITypeError, cdpruntime.APITypeAssert:
		return engine.ConsoleError
	default:
		return engine.ConsoleInfo
	}
}

func logEntryLevel(l cdplog.Level) engine.ConsoleLevel {
	switch l {
	case cdplog.LevelVerbose:
		return engine.ConsoleDebug
	case cdplog.LevelWarning:
		return engine.ConsoleWarning
	case cdplog.LevelError:
		return engine.ConsoleError
	default:
		return engine.ConsoleInfo
	}
}

// remoteObjectText renders a console argument the way devtools would:
// primitives by value, everything else by description.
func remoteObjectText(o *cdpruntime.RemoteObject) string {
	if o == nil {
		return ""
	}
	if len(o.Value) > 0 {
		var v any
		if err := json.Unmarshal(o.Value, &v); err == nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
		return string(o.Value)
	}
	if o.Description != "" {
		return o.Description
	}
	return string(o.Type)
}

// parseURL is nil-tolerant: the engine reports empty URLs for
// about:blank popups and synthetic loads.
func parseURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
