// Package cdp drives a Chromium engine over the DevTools protocol. It
// implements the engine interfaces with chromedp: one allocator per
// Engine, one chromedp context per page, and one dispatcher goroutine
// per page delivering events to the delegate in order.
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	cdplog "github.com/chromedp/cdproto/log"

	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/logging"
)

// Options configure how the engine is launched or attached.
type Options struct {
	// ExecutablePath overrides engine binary discovery for launches.
	ExecutablePath string
	// RemoteURL attaches to a running engine's devtools endpoint
	// (http://host:port) instead of launching one.
	RemoteURL string
	// Headless launches without a visible window.
	Headless bool
	// NoSandbox disables the engine sandbox.
	NoSandbox bool
	// UserDataDir is the profile directory; empty uses a throwaway.
	UserDataDir string
	// InterceptAuth pauses requests so authentication challenges reach
	// the delegate. Costs a network round-trip per request.
	InterceptAuth bool
	Logger        *logging.Logger
}

// Engine implements engine.Engine over a chromedp allocator.
type Engine struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	rootCtx       context.Context
	rootCancel    context.CancelFunc
	log           *logging.Logger
	interceptAuth bool
}

var _ engine.Engine = (*Engine)(nil)

// New launches the engine, or attaches to one when opts.RemoteURL is
// set. ctx bounds the engine's lifetime: cancelling it tears the engine
// down.
func New(ctx context.Context, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("engine")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		wsURL, err := WebSocketURL(ctx, opts.RemoteURL)
		if err != nil {
			return nil, fmt.Errorf("attach to engine at %s: %w", opts.RemoteURL, err)
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, wsURL)
	} else {
		execPath := opts.ExecutablePath
		if execPath == "" {
			located, err := LocateExecutable("")
			if err != nil {
				return nil, err
			}
			execPath = located
		}

		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(execPath),
			chromedp.Flag("headless", opts.Headless),
			// Pages must not spawn engine-owned windows; window.open
			// is reported as an event and answered by the shell.
			chromedp.Flag("block-new-web-contents", true),
		)
		if opts.Headless {
			allocOpts = append(allocOpts,
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("disable-dev-shm-usage", true),
			)
		}
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
		}
		if opts.UserDataDir != "" {
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	rootCtx, rootCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Errorf),
	)

	// Starting the browser now surfaces launch failures here instead of
	// on the first page.
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	return &Engine{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		rootCtx:       rootCtx,
		rootCancel:    rootCancel,
		log:           log,
		interceptAuth: opts.InterceptAuth,
	}, nil
}

// Version reports the engine product string, e.g. "Chrome/124.0.6367.60".
func (e *Engine) Version(ctx context.Context) (string, error) {
	run, cancel := bound(e.rootCtx, ctx)
	defer cancel()

	var product string
	err := chromedp.Run(run, chromedp.ActionFunc(func(ctx context.Context) error {
		_, p, _, _, _, err := browser.GetVersion().Do(ctx)
		product = p
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("engine version: %w", err)
	}
	return product, nil
}

// NewPage creates a blank page and starts its event dispatcher.
func (e *Engine) NewPage(ctx context.Context) (engine.Page, error) {
	pctx, pcancel := chromedp.NewContext(e.rootCtx)

	run, cancel := bound(pctx, ctx)
	defer cancel()

	var frameID cdp.FrameID
	actions := []chromedp.Action{
		cdplog.Enable(),
		network.Enable(),
		cdpruntime.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			frameID = tree.Frame.ID
			return nil
		}),
	}
	if e.interceptAuth {
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	if err := chromedp.Run(run, actions...); err != nil {
		pcancel()
		return nil, fmt.Errorf("create page: %w", err)
	}

	var id string
	if target := chromedp.FromContext(pctx).Target; target != nil {
		id = string(target.TargetID)
	}

	p := newPage(pctx, pcancel, id, frameID, e.log.With(zap.String("page_id", id)))
	p.install()
	return p, nil
}

// Close tears down the engine and every page it owns.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(e.rootCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.rootCancel()
	e.allocCancel()
	return err
}

// bound derives a child of parent that is additionally cancelled when
// ctx is. chromedp contexts carry their target in values, so the child
// still addresses the same target.
func bound(parent, ctx context.Context) (context.Context, context.CancelFunc) {
	child, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(ctx, cancel)
	return child, func() {
		stop()
		cancel()
	}
}
