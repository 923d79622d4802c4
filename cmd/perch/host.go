package cli

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/tabs"
	"github.com/perchbrowser/perch/internal/version"
	"github.com/perchbrowser/perch/internal/webview"
)

// hostOptions wires a windowHost's collaborators. All fields are
// required except Bus and Metrics.
type hostOptions struct {
	Engine   engine.Engine
	Config   func() *config.Config
	Policy   *policy.Policy
	Gate     *version.Gate
	Registry *tabs.Registry
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// windowHost stands in for a browser window: it owns the views living
// in it and opens new tabs into it. It registers itself in the tab
// registry so views and the control server can reach it by window ID.
type windowHost struct {
	id   string
	opts hostOptions
	log  *logging.Logger

	mu    sync.Mutex
	views []*webview.View
}

var _ tabs.Opener = (*windowHost)(nil)

func newWindowHost(opts hostOptions) *windowHost {
	h := &windowHost{
		id:   uuid.NewString(),
		opts: opts,
		log:  opts.Logger.Named("window"),
	}
	h.log = h.log.With(zap.String("window_id", h.id))
	opts.Registry.Register(h.id, h)
	return h
}

// ID is the window identifier views and the control server use.
func (h *windowHost) ID() string { return h.id }

// OpenTab creates an engine page, wraps it in a view and adds it to the
// window. The returned page is already wired: its delegate installed,
// the policy's headers applied, and the initial URL loading when one
// was given.
func (h *windowHost) OpenTab(ctx context.Context, opts tabs.OpenOptions) (engine.Page, error) {
	page, err := h.opts.Engine.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("new engine page: %w", err)
	}

	view, err := webview.NewView(webview.Options{
		WindowID: h.id,
		Page:     page,
		Config:   h.opts.Config,
		Policy:   h.opts.Policy,
		Gate:     h.opts.Gate,
		Registry: h.opts.Registry,
		Logger:   h.opts.Logger,
		Bus:      h.opts.Bus,
		Metrics:  h.opts.Metrics,
	})
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := page.Close(closeCtx); cerr != nil {
			h.log.Warn("closing orphaned page failed", zap.Error(cerr))
		}
		return nil, err
	}

	if err := h.applyHeaders(ctx, page); err != nil {
		h.log.Warn("applying custom headers failed", zap.Error(err))
	}

	h.mu.Lock()
	h.views = append(h.views, view)
	count := len(h.views)
	h.mu.Unlock()

	h.log.Info("tab opened",
		zap.String("page_id", page.ID()),
		zap.Bool("background", opts.Background),
		zap.Int("tabs", count))

	if opts.URL != nil {
		if err := page.Navigate(ctx, opts.URL.String()); err != nil {
			return page, fmt.Errorf("navigate %s: %w", opts.URL, err)
		}
	}
	return page, nil
}

// applyHeaders pushes the policy's custom headers onto drivers that
// support them. Drivers that don't simply skip the step.
func (h *windowHost) applyHeaders(ctx context.Context, page engine.Page) error {
	hs, ok := page.(engine.HeaderSetter)
	if !ok {
		return nil
	}
	headers := h.opts.Policy.HeaderMap()
	if len(headers) == 0 {
		return nil
	}
	return hs.SetExtraHeaders(ctx, headers)
}

// open parses and opens rawurl in a new tab.
func (h *windowHost) open(ctx context.Context, rawurl string, bg bool) (engine.Page, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawurl, err)
	}
	return h.OpenTab(ctx, tabs.OpenOptions{Background: bg, URL: u})
}

// TabCount reports how many views the window holds.
func (h *windowHost) TabCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

// Shutdown tears down every view and removes the window from the
// registry.
func (h *windowHost) Shutdown() {
	h.opts.Registry.Unregister(h.id)

	h.mu.Lock()
	views := h.views
	h.views = nil
	h.mu.Unlock()

	for _, v := range views {
		v.Shutdown()
	}
	h.log.Debug("window closed", zap.Int("tabs", len(views)))
}
