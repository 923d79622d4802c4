package webview

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/version"
)

func TestCertificateErrorNonOverridable(t *testing.T) {
	// The decision must be "no" regardless of configuration or what a
	// prompter would answer; the prompter must not even be consulted.
	configs := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"defaults", nil},
		{"modal dialogs", func(c *config.Config) { c.Content.ModalJSDialogs = true }},
		{"everything ignored", func(c *config.Config) {
			c.Content.IgnoreJSAlert = true
			c.Content.IgnoreJSPrompt = true
		}},
	}
	for _, tc := range configs {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, fixtureOpts{mutateConfig: tc.mutate})
			fx.prompter.answer = policy.Answer{Yes: true}

			certErr := &engine.CertificateError{
				Code: "ERR_CERT_REVOKED",
				URL:  mustParse(t, "https://revoked.test/"),
			}
			ignore := fx.page.CertificateError(certErr)

			assert.False(t, ignore)
			assert.Empty(t, fx.prompter.asked)
		})
	}
}

func TestCertificateErrorOverridableAccepted(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	fx.prompter.answer = policy.Answer{Yes: true}

	certErr := &engine.CertificateError{
		Code: "ERR_CERT_AUTHORITY_INVALID",
		URL:  mustParse(t, "https://example.test/"),
	}
	ignore := fx.page.CertificateError(certErr)

	assert.True(t, ignore)
	require.Len(t, fx.prompter.asked, 1)
	assert.Equal(t, policy.QuestionYesNo, fx.prompter.asked[0].Kind)
	assert.Empty(t, fx.engine.setContent, "ignored error must not replace the page")
}

func TestCertificateErrorDeclinedAppliesErrorPage(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	fx.prompter.answer = policy.Answer{Yes: false}

	// Same page modulo scheme: the document is replaced.
	certErr := &engine.CertificateError{
		Code:        "ERR_CERT_DATE_INVALID",
		URL:         mustParse(t, "http://example.test/"),
		Description: "certificate has expired",
	}
	ignore := fx.page.CertificateError(certErr)

	assert.False(t, ignore)
	require.Len(t, fx.engine.setContent, 1)
	html := fx.engine.setContent[0]
	assert.True(t, strings.Contains(html, "ERR_CERT_DATE_INVALID"), "error page missing code:\n%s", html)
	assert.True(t, strings.Contains(html, "Error loading page"), "error page missing title:\n%s", html)
}

func TestCertificateErrorSubresourceKeepsPage(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	fx.prompter.answer = policy.Answer{Yes: false}

	// The failure belongs to a subresource, not the requested page.
	certErr := &engine.CertificateError{
		Code: "ERR_CERT_AUTHORITY_INVALID",
		URL:  mustParse(t, "https://cdn.example.test/lib.js"),
	}
	ignore := fx.page.CertificateError(certErr)

	assert.False(t, ignore)
	assert.Empty(t, fx.engine.setContent)
}

func TestCertificateErrorEmitsSignal(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	var got *engine.CertificateError
	events.Subscribe(fx.bus, events.TopicCertificateError, func(e *engine.CertificateError) error {
		got = e
		return nil
	})

	certErr := &engine.CertificateError{Code: "ERR_CERT_REVOKED", URL: mustParse(t, "https://x.test/")}
	fx.page.CertificateError(certErr)

	assert.Same(t, certErr, got)
}

func TestDialogsAfterShutdown(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	fx.prompter.answer = policy.Answer{Yes: true, Text: "never"}
	fx.page.Shutdown()

	u := mustParse(t, "https://example.test/")

	ok, err := fx.page.JavaScriptConfirm(u, "leave?")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fx.page.JavaScriptAlert(u, "gone"))

	text, submitted, err := fx.page.JavaScriptPrompt(u, "name?", "d")
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.False(t, submitted)

	user, pass, granted := fx.page.AuthenticationRequired(u, "realm")
	assert.Equal(t, "", user)
	assert.Equal(t, "", pass)
	assert.False(t, granted)

	assert.Empty(t, fx.prompter.asked, "shutdown short-circuit must not consult the prompter")
}

func TestDialogDispatch(t *testing.T) {
	u := mustParse(t, "https://example.test/")

	tests := []struct {
		name    string
		dialog  engine.Dialog
		answer  policy.Answer
		want    engine.DialogDecision
		wantErr error
	}{
		{
			name:   "alert acknowledges",
			dialog: engine.Dialog{Kind: engine.DialogAlert, URL: u, Message: "hi"},
			want:   engine.DialogDecision{Accept: true},
		},
		{
			name:   "confirm yes",
			dialog: engine.Dialog{Kind: engine.DialogConfirm, URL: u, Message: "sure?"},
			answer: policy.Answer{Yes: true},
			want:   engine.DialogDecision{Accept: true},
		},
		{
			name:   "confirm no",
			dialog: engine.Dialog{Kind: engine.DialogConfirm, URL: u, Message: "sure?"},
			want:   engine.DialogDecision{Accept: false},
		},
		{
			name:   "prompt submitted",
			dialog: engine.Dialog{Kind: engine.DialogPrompt, URL: u, Message: "name?", DefaultText: "d"},
			answer: policy.Answer{Text: "alice"},
			want:   engine.DialogDecision{Accept: true, Text: "alice"},
		},
		{
			name:    "before-unload defers to engine",
			dialog:  engine.Dialog{Kind: engine.DialogBeforeUnload, URL: u, Message: "leave?"},
			wantErr: engine.ErrNotHandled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, fixtureOpts{})
			fx.prompter.answer = tt.answer

			got, err := fx.page.Dialog(tt.dialog)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialogModalConfigDefersToEngine(t *testing.T) {
	fx := newFixture(t, fixtureOpts{
		mutateConfig: func(c *config.Config) { c.Content.ModalJSDialogs = true },
	})

	u := mustParse(t, "https://example.test/")
	for _, kind := range []engine.DialogKind{engine.DialogAlert, engine.DialogConfirm, engine.DialogPrompt} {
		_, err := fx.page.Dialog(engine.Dialog{Kind: kind, URL: u, Message: "m"})
		require.ErrorIs(t, err, policy.ErrDeferToEngine, "kind %v", kind)
	}
	assert.Empty(t, fx.prompter.asked)
}

func TestLoadStartedAbortsPrompt(t *testing.T) {
	blocking := &blockingPrompter{started: make(chan struct{})}
	fx := newFixture(t, fixtureOpts{prompter: blocking})

	u := mustParse(t, "https://example.test/")
	go func() {
		<-blocking.started
		fx.page.LoadStarted(u)
	}()

	ok, err := fx.page.JavaScriptConfirm(u, "still there?")
	require.NoError(t, err)
	assert.False(t, ok, "aborted confirm must answer no")
}

func TestShutdownAbortsPrompt(t *testing.T) {
	blocking := &blockingPrompter{started: make(chan struct{})}
	fx := newFixture(t, fixtureOpts{prompter: blocking})

	u := mustParse(t, "https://example.test/")
	go func() {
		<-blocking.started
		fx.page.Shutdown()
	}()

	ok, err := fx.page.JavaScriptConfirm(u, "still there?")
	require.NoError(t, err)
	assert.False(t, ok)
}

// newConsoleFixture builds a view whose loggers write to the observer
// core so console routing is visible.
func newConsoleFixture(t *testing.T, core zapcore.Core, jsConsole string) *fixture {
	t.Helper()
	t.Setenv(version.EnvPatched, "")

	cfg := config.Default()
	cfg.Content.JSConsole = jsConsole
	snapshot := func() *config.Config { return cfg }

	ep := &fakeEnginePage{id: "page-1", requested: mustParse(t, "https://example.test/")}
	view, err := NewView(Options{
		WindowID: "win-1",
		Page:     ep,
		Config:   snapshot,
		Logger:   &logging.Logger{Logger: zap.New(core)},
		Gate:     version.NewGate(gatedProduct),
	})
	require.NoError(t, err)
	return &fixture{view: view, page: view.Page(), engine: ep, cfg: cfg}
}

func TestConsoleMessageThreshold(t *testing.T) {
	tests := []struct {
		setting string
		level   engine.ConsoleLevel
		logged  bool
	}{
		{"none", engine.ConsoleError, false},
		{"debug", engine.ConsoleDebug, true},
		{"info", engine.ConsoleDebug, false},
		{"info", engine.ConsoleInfo, true},
		{"warning", engine.ConsoleInfo, false},
		{"warning", engine.ConsoleWarning, true},
		{"error", engine.ConsoleWarning, false},
		{"error", engine.ConsoleError, true},
	}
	for _, tt := range tests {
		t.Run(tt.setting+"/"+tt.level.String(), func(t *testing.T) {
			core, recorded := observer.New(zap.DebugLevel)
			fx := newConsoleFixture(t, core, tt.setting)

			fx.page.ConsoleMessage(engine.ConsoleMessage{
				Level:  tt.level,
				Text:   "hello",
				Source: "https://example.test/app.js",
				Line:   7,
			})

			jsEntries := 0
			for _, entry := range recorded.All() {
				if entry.LoggerName == "js" {
					jsEntries++
				}
			}
			if tt.logged {
				assert.Equal(t, 1, jsEntries)
			} else {
				assert.Zero(t, jsEntries)
			}
		})
	}
}

func TestConsoleMessageFormat(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	fx := newConsoleFixture(t, core, "debug")

	fx.page.ConsoleMessage(engine.ConsoleMessage{
		Level:  engine.ConsoleWarning,
		Text:   "deprecated API",
		Source: "https://example.test/app.js",
		Line:   42,
	})

	var found bool
	for _, entry := range recorded.All() {
		if entry.LoggerName != "js" {
			continue
		}
		found = true
		assert.Equal(t, "[https://example.test/app.js:42] deprecated API", entry.Message)
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	}
	assert.True(t, found, "console message did not reach the js logger")
}

func TestAcceptNavigationNonLinkTypes(t *testing.T) {
	types := []engine.NavigationType{
		engine.NavigationTyped,
		engine.NavigationFormSubmitted,
		engine.NavigationBackForward,
		engine.NavigationReload,
		engine.NavigationRedirect,
		engine.NavigationOther,
	}
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			fx := newFixture(t, fixtureOpts{})
			// Even with a hostile target and no URL the request passes.
			fx.page.TabState().SetBase(engine.TargetTab)

			accepted := fx.page.AcceptNavigation(engine.NavigationRequest{
				URL:         nil,
				Type:        typ,
				IsMainFrame: true,
			})
			assert.True(t, accepted)
		})
	}
}

func TestAcceptNavigationLinkClicked(t *testing.T) {
	tests := []struct {
		name   string
		rawurl string
		target engine.ClickTarget
		want   bool
	}{
		{"valid url, normal target", "https://example.test/next", engine.TargetNormal, true},
		{"valid url, tab target", "https://example.test/next", engine.TargetTab, false},
		{"valid url, background target", "https://example.test/next", engine.TargetBackgroundTab, false},
		{"valid url, window target", "https://example.test/next", engine.TargetWindow, false},
		{"nil url, normal target", "", engine.TargetNormal, false},
		{"relative url, normal target", "/relative/only", engine.TargetNormal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, fixtureOpts{})
			fx.page.TabState().SetBase(tt.target)

			req := engine.NavigationRequest{Type: engine.NavigationLinkClicked, IsMainFrame: true}
			if tt.rawurl != "" {
				req.URL = mustParse(t, tt.rawurl)
			}

			assert.Equal(t, tt.want, fx.page.AcceptNavigation(req))
		})
	}
}

func TestLinkClickedEmitted(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	var got *url.URL
	events.Subscribe(fx.bus, events.TopicLinkClicked, func(u *url.URL) error {
		got = u
		return nil
	})

	u := mustParse(t, "https://example.test/next")
	fx.page.AcceptNavigation(engine.NavigationRequest{
		URL:  u,
		Type: engine.NavigationLinkClicked,
	})

	assert.Same(t, u, got)
}

func TestNonLinkNavigationNotEmitted(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	emitted := 0
	events.Subscribe(fx.bus, events.TopicLinkClicked, func(*url.URL) error {
		emitted++
		return nil
	})

	fx.page.AcceptNavigation(engine.NavigationRequest{
		URL:  mustParse(t, "https://example.test/"),
		Type: engine.NavigationTyped,
	})

	assert.Zero(t, emitted)
}

func TestShutdownMonotonic(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	emissions := 0
	events.Subscribe(fx.bus, events.TopicShuttingDown, func(struct{}) error {
		emissions++
		return nil
	})

	fx.page.Shutdown()
	fx.page.Shutdown()
	fx.page.Shutdown()

	assert.True(t, fx.page.ShuttingDown())
	assert.Equal(t, 1, emissions, "only the first Shutdown announces")
	assert.Equal(t, 1, fx.engine.closed, "only the first Shutdown closes the page")
}

func TestLoadStartedEmits(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	var got *url.URL
	events.Subscribe(fx.bus, events.TopicLoadStarted, func(u *url.URL) error {
		got = u
		return nil
	})

	u := mustParse(t, "https://example.test/fresh")
	fx.page.LoadStarted(u)

	assert.Same(t, u, got)
}
