// Package webview adapts engine pages to shell policy. A View owns
// exactly one Page adapter; the View answers window-creation requests,
// the Page answers everything else the engine asks about its page.
package webview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/tabs"
	"github.com/perchbrowser/perch/internal/version"
)

// ErrUnknownWindowKind reports a window-creation kind outside the known
// set. Unlike unsupported-but-known kinds, which are denied quietly,
// an unknown kind is a contract violation and surfaces as an error.
var ErrUnknownWindowKind = errors.New("unknown window kind")

const (
	openTabTimeout    = 10 * time.Second
	setContentTimeout = 5 * time.Second
	closePageTimeout  = 5 * time.Second
)

// Options wires a View's collaborators. Page and WindowID are
// required; everything else has a working default.
type Options struct {
	// WindowID is the shell's identifier for the window hosting this
	// view, used to find its tab opener in the registry.
	WindowID string
	// Page is the engine page this adapter pair wraps. NewView
	// installs the Page adapter as its delegate.
	Page engine.Page
	// Config returns the current config snapshot. Defaults to the
	// compiled-in config.
	Config func() *config.Config
	// Policy answers dialog, certificate and authentication questions.
	// Defaults to a policy with no prompter: every question resolves
	// to its safe default.
	Policy *policy.Policy
	// Gate decides whether window-creation requests are honored at
	// all. A nil gate denies every request.
	Gate *version.Gate
	// Registry resolves WindowID to the window's tab opener. A nil
	// registry denies every window-creation request.
	Registry *tabs.Registry
	Logger   *logging.Logger
	Bus      *events.Bus
	Metrics  *metrics.Metrics
}

// View adapts one engine view for the shell.
type View struct {
	windowID string
	page     *Page
	gate     *version.Gate
	registry *tabs.Registry
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// NewView builds the View/Page adapter pair around opts.Page and
// installs the Page adapter as the engine page's delegate.
func NewView(opts Options) (*View, error) {
	if opts.Page == nil {
		return nil, errors.New("webview: Options.Page is required")
	}
	if opts.WindowID == "" {
		return nil, errors.New("webview: Options.WindowID is required")
	}

	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = func() *config.Config { return def }
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	pol := opts.Policy
	if pol == nil {
		pol = policy.New(cfg, nil)
	}

	v := &View{
		windowID: opts.WindowID,
		gate:     opts.Gate,
		registry: opts.Registry,
		log:      log.Named("webview").With(zap.String("window_id", opts.WindowID)),
		metrics:  opts.Metrics,
	}
	v.page = &Page{
		view:     v,
		engine:   opts.Page,
		config:   cfg,
		policy:   pol,
		tabState: NewTabState(),
		log:      v.log.With(zap.String("page_id", opts.Page.ID())),
		js:       log.Named("js"),
		bus:      bus,
		metrics:  opts.Metrics,
	}
	opts.Page.SetDelegate(v.page)
	return v, nil
}

// WindowID is the shell identifier this view was created under.
func (v *View) WindowID() string { return v.windowID }

// Page is the owned page adapter.
func (v *View) Page() *Page { return v.page }

// CreateWindow handles the engine's request for a new window hosted by
// this view. It returns the engine page the popup should load into, or
// nil, nil to drop the request.
//
// Kinds map as follows: tabs and background tabs open through the
// window's registered tab opener; windows and dialogs are unsupported
// and denied; anything else is an ErrUnknownWindowKind error.
func (v *View) CreateWindow(kind engine.WindowKind) (engine.Page, error) {
	log := v.log.With(zap.Stringer("kind", kind))
	log.Debug("window requested")

	if v.gate == nil || !v.gate.Active() {
		reason := "no engine version gate"
		if v.gate != nil {
			reason = v.gate.Reason()
		}
		log.Debug("dropping window request", zap.String("reason", reason))
		v.metrics.RecordWindow(kind.String(), "denied")
		return nil, nil
	}

	var background bool
	switch kind {
	case engine.KindTab:
	case engine.KindBackgroundTab:
		background = true
	case engine.KindWindow, engine.KindDialog:
		log.Warn("unsupported window kind requested, denying")
		v.metrics.RecordWindow(kind.String(), "denied")
		return nil, nil
	default:
		v.metrics.RecordWindow(kind.String(), "failed")
		return nil, fmt.Errorf("%w: %v", ErrUnknownWindowKind, kind)
	}

	if v.registry == nil {
		log.Warn("no tab registry wired, denying window request")
		v.metrics.RecordWindow(kind.String(), "denied")
		return nil, nil
	}
	opener, ok := v.registry.Lookup(v.windowID)
	if !ok {
		log.Warn("no tab opener registered for window, denying")
		v.metrics.RecordWindow(kind.String(), "denied")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTabTimeout)
	defer cancel()
	page, err := opener.OpenTab(ctx, tabs.OpenOptions{
		Background:  background,
		RelatedPage: v.page.Unwrap(),
	})
	if err != nil {
		log.Error("opening tab failed, denying window request", zap.Error(err))
		v.metrics.RecordWindow(kind.String(), "failed")
		return nil, nil
	}

	v.metrics.RecordWindow(kind.String(), "opened")
	return page, nil
}

// Shutdown tears the view down via its page adapter.
func (v *View) Shutdown() {
	v.page.Shutdown()
}
