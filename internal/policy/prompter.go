package policy

import (
	"context"
	"errors"
	"net/url"
)

// ErrDeferToEngine tells the caller to let the engine's native handling
// answer instead of the shell. Returned, never wrapped, so drivers can
// test for it with errors.Is.
var ErrDeferToEngine = errors.New("defer to engine")

// ErrNoPrompter is returned by Deny for every question.
var ErrNoPrompter = errors.New("no prompter configured")

// QuestionKind selects the prompt widget.
type QuestionKind int

const (
	// QuestionYesNo wants Answer.Yes.
	QuestionYesNo QuestionKind = iota
	// QuestionText wants Answer.Text.
	QuestionText
	// QuestionCredentials wants Answer.User and Answer.Password.
	QuestionCredentials
	// QuestionAlert wants acknowledgement only.
	QuestionAlert
)

func (k QuestionKind) String() string {
	switch k {
	case QuestionYesNo:
		return "yesno"
	case QuestionText:
		return "text"
	case QuestionCredentials:
		return "credentials"
	case QuestionAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Question is one modal question for the user.
type Question struct {
	Kind    QuestionKind
	Title   string
	Text    string
	Default string
	// URL is the origin the question concerns, for display. May be nil.
	URL *url.URL
}

// Answer is the user's reply. Which fields are meaningful depends on
// the question kind.
type Answer struct {
	Yes      bool
	Text     string
	User     string
	Password string
}

// Prompter asks the user and blocks until they answer or ctx is
// cancelled. Cancellation (page started a new load, page is shutting
// down) must surface as ctx.Err().
type Prompter interface {
	Ask(ctx context.Context, q Question) (Answer, error)
}

// Deny answers every question with ErrNoPrompter. It is the fallback
// when no real prompter is wired, turning every question into its safe
// default.
type Deny struct{}

func (Deny) Ask(context.Context, Question) (Answer, error) {
	return Answer{}, ErrNoPrompter
}
