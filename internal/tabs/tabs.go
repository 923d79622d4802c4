// Package tabs connects window adapters to whatever opens tabs for
// them. The shell registers an Opener per window; adapters look their
// window up when the engine asks for a new tab.
package tabs

import (
	"context"
	"net/url"
	"sync"

	"github.com/perchbrowser/perch/internal/engine"
)

// OpenOptions says how a new tab should be opened.
type OpenOptions struct {
	// Background opens the tab without focusing it.
	Background bool
	// RelatedPage is the page that requested the tab, when the engine
	// wants the new target related to it (popups). May be nil.
	RelatedPage engine.Page
	// URL to load in the new tab. Nil leaves it blank.
	URL *url.URL
}

// Opener opens tabs in one window.
type Opener interface {
	OpenTab(ctx context.Context, opts OpenOptions) (engine.Page, error)
}

// Registry maps window IDs to their Openers. Zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register associates a window ID with an opener, replacing any
// previous association.
func (r *Registry) Register(windowID string, o Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[windowID] = o
}

// Lookup returns the opener for a window, if registered.
func (r *Registry) Lookup(windowID string) (Opener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.openers[windowID]
	return o, ok
}

// Unregister removes a window. Unknown IDs are a no-op.
func (r *Registry) Unregister(windowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.openers, windowID)
}

// IDs returns the registered window IDs in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.openers))
	for id := range r.openers {
		ids = append(ids, id)
	}
	return ids
}
