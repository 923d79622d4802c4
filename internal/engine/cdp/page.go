package cdp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/logging"
)

// opTimeout bounds protocol commands issued in response to events,
// where no caller context exists.
const opTimeout = 10 * time.Second

// Page is one engine target. The protocol listener pushes events onto a
// buffered queue and a single dispatcher goroutine delivers them to the
// delegate, so delegate callbacks are serialized and may block without
// stalling the protocol connection.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     string
	log    *logging.Logger
	events chan any

	mu           sync.Mutex
	delegate     engine.PageDelegate
	currentURL   *url.URL
	requestedURL *url.URL
	frameID      cdp.FrameID
	requests     map[network.RequestID]*url.URL
	loadFailed   bool
}

var (
	_ engine.Page         = (*Page)(nil)
	_ engine.HeaderSetter = (*Page)(nil)
)

func newPage(ctx context.Context, cancel context.CancelFunc, id string, frameID cdp.FrameID, log *logging.Logger) *Page {
	return &Page{
		ctx:      ctx,
		cancel:   cancel,
		id:       id,
		log:      log,
		events:   make(chan any, eventQueueSize),
		frameID:  frameID,
		requests: make(map[network.RequestID]*url.URL),
	}
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURL
}

func (p *Page) RequestedURL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestedURL
}

// Navigate starts loading rawurl. It returns once the engine accepted
// the navigation; the load itself is reported through the delegate.
func (p *Page) Navigate(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	p.mu.Lock()
	p.requestedURL = u
	p.mu.Unlock()

	run, cancel := bound(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(run, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(rawurl).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate to %s: %w", rawurl, err)
		}
		if errText != "" {
			return fmt.Errorf("navigate to %s: %s", rawurl, errText)
		}
		return nil
	}))
}

// SetContent replaces the document with html. The frame tree is read
// live because the main frame's ID changes across process swaps.
func (p *Page) SetContent(ctx context.Context, html string) error {
	run, cancel := bound(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(run, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	}))
}

func (p *Page) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(p.ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Page) SetDelegate(d engine.PageDelegate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegate = d
}

// SetExtraHeaders attaches headers to every request this page issues.
func (p *Page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	h := make(network.Headers, len(headers))
	for name, value := range headers {
		h[name] = value
	}
	run, cancel := bound(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(run, network.SetExtraHTTPHeaders(h))
}

// delegateRef returns the installed delegate, or engine defaults when
// none is set.
func (p *Page) delegateRef() engine.PageDelegate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delegate == nil {
		return engine.NopDelegate{}
	}
	return p.delegate
}

func (p *Page) mainFrame() cdp.FrameID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameID
}

// run issues protocol commands from the dispatcher goroutine, bounded
// by opTimeout so a dead connection cannot wedge event delivery.
func (p *Page) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, opTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}
