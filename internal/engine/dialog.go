package engine

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrNotHandled is returned by a PageDelegate that declines to decide,
// telling the driver to apply its native default for the event.
var ErrNotHandled = errors.New("not handled by delegate")

// DialogKind is the type of a JavaScript dialog.
type DialogKind int

const (
	// DialogAlert has no answer beyond acknowledgement.
	DialogAlert DialogKind = iota
	// DialogConfirm asks a yes/no question.
	DialogConfirm
	// DialogPrompt asks for a line of text.
	DialogPrompt
	// DialogBeforeUnload asks whether to leave the page.
	DialogBeforeUnload
)

func (k DialogKind) String() string {
	switch k {
	case DialogAlert:
		return "alert"
	case DialogConfirm:
		return "confirm"
	case DialogPrompt:
		return "prompt"
	case DialogBeforeUnload:
		return "before-unload"
	default:
		return fmt.Sprintf("DialogKind(%d)", int(k))
	}
}

// Dialog is a JavaScript dialog waiting for an answer.
type Dialog struct {
	Kind DialogKind
	// URL is the page that opened the dialog.
	URL *url.URL
	// Message is the dialog text.
	Message string
	// DefaultText is the prefilled answer, prompts only.
	DefaultText string
}

// DialogDecision answers a Dialog. Text is only meaningful for prompts
// and only when Accept is true.
type DialogDecision struct {
	Accept bool
	Text   string
}
