package engine

import "fmt"

// WindowKind classifies what a page asked for when it requested a new
// window.
type WindowKind int

const (
	// KindTab is a regular foreground tab.
	KindTab WindowKind = iota
	// KindBackgroundTab is a tab opened without taking focus.
	KindBackgroundTab
	// KindWindow is a separate top-level window.
	KindWindow
	// KindDialog is an undecorated popup, e.g. window.open with
	// explicit size features.
	KindDialog
)

func (k WindowKind) String() string {
	switch k {
	case KindTab:
		return "tab"
	case KindBackgroundTab:
		return "background-tab"
	case KindWindow:
		return "window"
	case KindDialog:
		return "dialog"
	default:
		return fmt.Sprintf("WindowKind(%d)", int(k))
	}
}

// NavigationType says what triggered a navigation request.
type NavigationType int

const (
	// NavigationLinkClicked is a user click on an anchor.
	NavigationLinkClicked NavigationType = iota
	// NavigationTyped is a URL entered by the shell (address bar,
	// command, API call).
	NavigationTyped
	// NavigationFormSubmitted is a form submission.
	NavigationFormSubmitted
	// NavigationBackForward is a history traversal.
	NavigationBackForward
	// NavigationReload is a reload of the current page.
	NavigationReload
	// NavigationRedirect is a server- or meta-triggered redirect.
	NavigationRedirect
	// NavigationOther covers script-initiated and uncategorized
	// navigations.
	NavigationOther
)

func (t NavigationType) String() string {
	switch t {
	case NavigationLinkClicked:
		return "link-clicked"
	case NavigationTyped:
		return "typed"
	case NavigationFormSubmitted:
		return "form-submitted"
	case NavigationBackForward:
		return "back-forward"
	case NavigationReload:
		return "reload"
	case NavigationRedirect:
		return "redirect"
	case NavigationOther:
		return "other"
	default:
		return fmt.Sprintf("NavigationType(%d)", int(t))
	}
}

// ClickTarget says where the shell wants a clicked link to land. It is
// per-tab policy, not an engine notion: the engine only ever sees the
// resulting accept/reject decision.
type ClickTarget int

const (
	// TargetNormal opens the link in the current view.
	TargetNormal ClickTarget = iota
	// TargetTab opens the link in a new foreground tab.
	TargetTab
	// TargetBackgroundTab opens the link in a new background tab.
	TargetBackgroundTab
	// TargetWindow opens the link in a new window.
	TargetWindow
)

func (t ClickTarget) String() string {
	switch t {
	case TargetNormal:
		return "normal"
	case TargetTab:
		return "tab"
	case TargetBackgroundTab:
		return "background-tab"
	case TargetWindow:
		return "window"
	default:
		return fmt.Sprintf("ClickTarget(%d)", int(t))
	}
}

// ConsoleLevel is the severity of a script console message.
type ConsoleLevel int

const (
	ConsoleDebug ConsoleLevel = iota
	ConsoleInfo
	ConsoleWarning
	ConsoleError
)

func (l ConsoleLevel) String() string {
	switch l {
	case ConsoleDebug:
		return "debug"
	case ConsoleInfo:
		return "info"
	case ConsoleWarning:
		return "warning"
	case ConsoleError:
		return "error"
	default:
		return fmt.Sprintf("ConsoleLevel(%d)", int(l))
	}
}
