package webview

import (
	"sync"

	"github.com/perchbrowser/perch/internal/engine"
)

// TabState is the per-tab policy the shell mutates while the page
// adapter reads it from the engine's event goroutine.
type TabState struct {
	mu sync.Mutex
	// base is where link clicks land by default.
	base engine.ClickTarget
	// override, when set, wins over base for the next click. The shell
	// sets it on middle-click or modifier-click and clears it after
	// the click is dispatched.
	override *engine.ClickTarget
}

// NewTabState starts with clicks landing in the current view.
func NewTabState() *TabState {
	return &TabState{base: engine.TargetNormal}
}

// SetBase changes the default click target.
func (s *TabState) SetBase(t engine.ClickTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = t
}

// SetOverride arms a one-shot click target.
func (s *TabState) SetOverride(t engine.ClickTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &t
}

// ClearOverride disarms the one-shot target.
func (s *TabState) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
}

// CombinedTarget is the effective click target: the override when
// armed, the base otherwise.
func (s *TabState) CombinedTarget() engine.ClickTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override != nil {
		return *s.override
	}
	return s.base
}
