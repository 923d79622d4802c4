// Package policy holds the shared decision logic for page events:
// JavaScript dialogs, certificate overrides, authentication challenges
// and outgoing headers. Decisions read the live config snapshot and ask
// the user through a Prompter; every failure path resolves to the safe
// default.
package policy

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
)

// Policy answers page-event questions. Safe for concurrent use; all
// state lives in the config snapshot and the prompter.
type Policy struct {
	config   func() *config.Config
	prompter Prompter
	log      *logging.Logger
	js       *logging.Logger
	metrics  *metrics.Metrics
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger routes policy decisions to the given logger. The js
// sublogger receives dialog traces.
func WithLogger(log *logging.Logger) Option {
	return func(p *Policy) {
		p.log = log.Named("policy")
		p.js = log.Named("js")
	}
}

// WithMetrics records prompt durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// New builds a Policy. cfg must return the current config snapshot and
// never nil. A nil prompter degrades to Deny: every question resolves
// to its safe default.
func New(cfg func() *config.Config, prompter Prompter, opts ...Option) *Policy {
	if prompter == nil {
		prompter = Deny{}
	}
	p := &Policy{
		config:   cfg,
		prompter: prompter,
		log:      logging.NewNop(),
		js:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ask wraps the prompter with duration metrics.
func (p *Policy) ask(ctx context.Context, q Question) (Answer, error) {
	timer := p.metrics.PromptTimer(q.Kind.String())
	defer timer()
	return p.prompter.Ask(ctx, q)
}

// JavaScriptConfirm decides a confirm() dialog. ErrDeferToEngine means
// the engine's native dialog should run instead. Any prompter failure,
// abort included, answers no.
func (p *Policy) JavaScriptConfirm(ctx context.Context, pageURL *url.URL, msg string) (bool, error) {
	p.js.Debug("confirm", zap.String("msg", msg))
	cfg := p.config()
	if cfg.Content.ModalJSDialogs {
		return false, ErrDeferToEngine
	}

	ans, err := p.ask(ctx, Question{
		Kind:  QuestionYesNo,
		Title: "JavaScript confirm",
		Text:  msg,
		URL:   pageURL,
	})
	if err != nil {
		return false, nil
	}
	return ans.Yes, nil
}

// JavaScriptAlert acknowledges an alert() dialog. With
// content.ignore_js_alert set it is acknowledged silently.
func (p *Policy) JavaScriptAlert(ctx context.Context, pageURL *url.URL, msg string) error {
	p.js.Debug("alert", zap.String("msg", msg))
	cfg := p.config()
	if cfg.Content.ModalJSDialogs {
		return ErrDeferToEngine
	}
	if cfg.Content.IgnoreJSAlert {
		return nil
	}

	// The answer carries no information; asking only makes the user
	// acknowledge the message.
	_, _ = p.ask(ctx, Question{
		Kind:  QuestionAlert,
		Title: "JavaScript alert",
		Text:  msg,
		URL:   pageURL,
	})
	return nil
}

// JavaScriptPrompt decides a prompt() dialog. ok reports whether the
// user submitted text; a dismissed or aborted prompt is ok == false.
func (p *Policy) JavaScriptPrompt(ctx context.Context, pageURL *url.URL, msg, defaultText string) (text string, ok bool, err error) {
	p.js.Debug("prompt", zap.String("msg", msg))
	cfg := p.config()
	if cfg.Content.ModalJSDialogs {
		return "", false, ErrDeferToEngine
	}
	if cfg.Content.IgnoreJSPrompt {
		return "", false, nil
	}

	ans, askErr := p.ask(ctx, Question{
		Kind:    QuestionText,
		Title:   "JavaScript prompt",
		Text:    msg,
		Default: defaultText,
		URL:     pageURL,
	})
	if askErr != nil {
		return "", false, nil
	}
	return ans.Text, true, nil
}

// IgnoreCertificateErrors asks whether an overridable certificate error
// should be bypassed. Callers must check overridability first; this
// method only phrases the question. Any failure answers no.
func (p *Policy) IgnoreCertificateErrors(ctx context.Context, pageURL *url.URL, certErr *engine.CertificateError) bool {
	ans, err := p.ask(ctx, Question{
		Kind:  QuestionYesNo,
		Title: "Certificate error - continue?",
		Text:  certErr.Error(),
		URL:   pageURL,
	})
	if err != nil {
		p.log.Debug("certificate prompt failed, treating as no", zap.Error(err))
		return false
	}
	return ans.Yes
}
