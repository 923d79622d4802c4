package cli

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/tabs"
	"github.com/perchbrowser/perch/internal/version"
)

type fakePage struct {
	id string

	mu        sync.Mutex
	delegate  engine.PageDelegate
	navigated []string
	headers   map[string]string
	closed    bool
}

var _ engine.Page = (*fakePage)(nil)
var _ engine.HeaderSetter = (*fakePage)(nil)

func (p *fakePage) ID() string             { return p.id }
func (p *fakePage) URL() *url.URL          { return nil }
func (p *fakePage) RequestedURL() *url.URL { return nil }

func (p *fakePage) SetContent(context.Context, string) error { return nil }

func (p *fakePage) Navigate(_ context.Context, rawurl string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, rawurl)
	return nil
}

func (p *fakePage) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) SetDelegate(d engine.PageDelegate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegate = d
}

func (p *fakePage) SetExtraHeaders(_ context.Context, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = headers
	return nil
}

type fakeEngine struct {
	mu    sync.Mutex
	pages []*fakePage
	err   error
}

var _ engine.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) NewPage(context.Context) (engine.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	p := &fakePage{id: "page-" + string(rune('a'+len(e.pages)))}
	e.pages = append(e.pages, p)
	return p, nil
}

func (e *fakeEngine) Version(context.Context) (string, error) { return "Chrome/124.0.0.0", nil }
func (e *fakeEngine) Close(context.Context) error             { return nil }

func newTestHost(t *testing.T, eng *fakeEngine, cfg *config.Config) *windowHost {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	getCfg := func() *config.Config { return cfg }
	return newWindowHost(hostOptions{
		Engine:   eng,
		Config:   getCfg,
		Policy:   policy.New(getCfg, nil),
		Gate:     version.NewGate("Chrome/124.0.0.0"),
		Registry: tabs.NewRegistry(),
		Metrics:  metrics.New(),
		Logger:   logging.NewNop(),
	})
}

func TestOpenTabNavigatesAndRegistersView(t *testing.T) {
	eng := &fakeEngine{}
	host := newTestHost(t, eng, nil)

	u, _ := url.Parse("https://example.org/")
	page, err := host.OpenTab(context.Background(), tabs.OpenOptions{URL: u})
	require.NoError(t, err)
	require.NotNil(t, page)

	require.Len(t, eng.pages, 1)
	fp := eng.pages[0]
	assert.Equal(t, []string{"https://example.org/"}, fp.navigated)
	assert.NotNil(t, fp.delegate, "view must install itself as delegate")
	assert.Equal(t, 1, host.TabCount())

	opener, ok := host.opts.Registry.Lookup(host.ID())
	require.True(t, ok, "host must register itself")
	assert.Same(t, host, opener.(*windowHost))
}

func TestOpenTabWithoutURLStaysBlank(t *testing.T) {
	eng := &fakeEngine{}
	host := newTestHost(t, eng, nil)

	_, err := host.OpenTab(context.Background(), tabs.OpenOptions{Background: true})
	require.NoError(t, err)
	assert.Empty(t, eng.pages[0].navigated)
}

func TestOpenTabAppliesPolicyHeaders(t *testing.T) {
	cfg := config.Default()
	cfg.Content.DoNotTrack = true
	cfg.Content.AcceptLanguage = "de-DE"
	cfg.Content.CustomHeaders = map[string]string{"X-Perch": "1"}

	eng := &fakeEngine{}
	host := newTestHost(t, eng, cfg)

	_, err := host.OpenTab(context.Background(), tabs.OpenOptions{})
	require.NoError(t, err)

	headers := eng.pages[0].headers
	assert.Equal(t, "1", headers["DNT"])
	assert.Equal(t, "de-DE", headers["Accept-Language"])
	assert.Equal(t, "1", headers["X-Perch"])
}

func TestOpenTabReportsEngineFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("engine gone")}
	host := newTestHost(t, eng, nil)

	_, err := host.OpenTab(context.Background(), tabs.OpenOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine gone")
	assert.Equal(t, 0, host.TabCount())
}

func TestShutdownClosesEverything(t *testing.T) {
	eng := &fakeEngine{}
	host := newTestHost(t, eng, nil)

	for i := 0; i < 3; i++ {
		_, err := host.OpenTab(context.Background(), tabs.OpenOptions{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, host.TabCount())

	host.Shutdown()

	assert.Equal(t, 0, host.TabCount())
	for _, p := range eng.pages {
		assert.True(t, p.closed, "page %s not closed", p.id)
	}
	_, ok := host.opts.Registry.Lookup(host.ID())
	assert.False(t, ok, "host must unregister itself")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.org/", "https://example.org/"},
		{"http://example.org", "http://example.org"},
		{"about:blank", "about:blank"},
		{"example.org", "https://example.org"},
		{"example.org/path", "https://example.org/path"},
		{"localhost:8080", "https://localhost:8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeURL(tt.in), "input %q", tt.in)
	}
}
