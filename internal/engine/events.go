package engine

import "net/url"

// NavigationRequest describes a navigation the engine is about to
// commit.
type NavigationRequest struct {
	// URL is the destination. nil when the engine reported an
	// unparseable URL.
	URL *url.URL
	// Type says what triggered the navigation.
	Type NavigationType
	// IsMainFrame is false for iframe navigations.
	IsMainFrame bool
}

// WindowRequest describes a page's request for a new window.
type WindowRequest struct {
	Kind WindowKind
	// URL is the destination for the new window, may be nil for
	// about:blank popups.
	URL *url.URL
	// UserGesture is true when the request came from a user action
	// rather than bare script.
	UserGesture bool
}

// ConsoleMessage is one line of script console output.
type ConsoleMessage struct {
	Level ConsoleLevel
	Text  string
	// Source is the script URL that produced the message, may be empty.
	Source string
	// Line is the 1-based line number in Source, 0 when unknown.
	Line int64
}
