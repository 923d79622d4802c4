// Package engine defines the boundary to the embedded web engine.
//
// The engine renders pages and reports lifecycle events; everything it
// reports crosses this boundary as plain values, and everything the
// shell decides flows back through the Page interface. Drivers live in
// subpackages (see engine/cdp); the rest of the codebase depends only
// on the types here.
package engine

import (
	"context"
	"net/url"
)

// Engine is a running web engine instance.
type Engine interface {
	// NewPage creates a blank page (a target in engine terms).
	NewPage(ctx context.Context) (Page, error)

	// Version reports the engine product string, e.g. "Chrome/124.0.6367.60".
	Version(ctx context.Context) (string, error)

	// Close tears down the engine and every page it owns.
	Close(ctx context.Context) error
}

// Page is a single engine page. All methods are safe to call from any
// goroutine; the engine serializes them internally.
type Page interface {
	// ID is the engine-assigned identifier for this page.
	ID() string

	// URL is the page's current URL, or nil before the first load.
	URL() *url.URL

	// RequestedURL is the URL of the last load request, which may
	// differ from URL while redirects are in flight.
	RequestedURL() *url.URL

	// Navigate starts loading rawurl.
	Navigate(ctx context.Context, rawurl string) error

	// SetContent replaces the page's document with the given HTML.
	SetContent(ctx context.Context, html string) error

	// Close destroys the page.
	Close(ctx context.Context) error

	// SetDelegate installs the event handler for this page. Passing
	// nil restores the engine's native behavior for everything.
	SetDelegate(d PageDelegate)
}

// PageDelegate receives page events. The engine driver invokes all
// methods synchronously on its event goroutine; a slow delegate stalls
// event delivery for that page, which is what modal semantics want.
type PageDelegate interface {
	// CertificateError reports a TLS failure on this page or one of
	// its subresources. Returning true tells the engine to proceed
	// with the load despite the error.
	CertificateError(cert *CertificateError) (ignore bool)

	// AcceptNavigation is consulted before the engine commits a
	// navigation. Returning false cancels it.
	AcceptNavigation(req NavigationRequest) bool

	// Dialog answers a JavaScript dialog. A non-nil error means the
	// delegate declines to decide and the driver applies its native
	// default for the dialog kind.
	Dialog(d Dialog) (DialogDecision, error)

	// ConsoleMessage receives script console output.
	ConsoleMessage(msg ConsoleMessage)

	// CreateWindow is called when the page asks for a new window.
	// The returned page hosts the popup; returning nil, nil drops the
	// request. A non-nil error aborts the request and is surfaced by
	// the driver.
	CreateWindow(req WindowRequest) (Page, error)

	// LoadStarted fires when a main-frame load begins.
	LoadStarted(u *url.URL)

	// LoadFinished fires when a main-frame load ends. ok is false for
	// aborted or failed loads.
	LoadFinished(u *url.URL, ok bool)
}

// HeaderSetter is implemented by pages that can attach extra HTTP
// headers to every request they issue.
type HeaderSetter interface {
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
}

// AuthDelegate is implemented by delegates that answer HTTP
// authentication challenges. Drivers that pause requests check for it
// and fall back to cancelling the challenge when the delegate does not
// implement it or declines.
type AuthDelegate interface {
	AuthenticationRequired(u *url.URL, realm string) (user, password string, ok bool)
}

// NopDelegate implements PageDelegate with engine-default answers.
// Embed it to override a subset of the callbacks.
type NopDelegate struct{}

func (NopDelegate) CertificateError(*CertificateError) bool { return false }

func (NopDelegate) AcceptNavigation(NavigationRequest) bool { return true }

func (NopDelegate) Dialog(Dialog) (DialogDecision, error) {
	return DialogDecision{}, ErrNotHandled
}

func (NopDelegate) ConsoleMessage(ConsoleMessage) {}

func (NopDelegate) CreateWindow(WindowRequest) (Page, error) { return nil, nil }

func (NopDelegate) LoadStarted(*url.URL) {}

func (NopDelegate) LoadFinished(*url.URL, bool) {}
