// Package control is the shell's loopback HTTP surface. One running
// instance accepts open requests, reports versions, and exposes
// metrics; the listen address doubles as the single-instance lock.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/engine"
	"github.com/perchbrowser/perch/internal/httputil"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/tabs"
	"github.com/perchbrowser/perch/internal/urlutil"
	"github.com/perchbrowser/perch/internal/version"
)

// OpenRequest asks a running instance to open a URL in a tab.
type OpenRequest struct {
	URL string `json:"url"`
	// Background overrides the tabs.background setting when non-nil.
	Background *bool `json:"background,omitempty"`
	// Window names the target window; empty means the main window.
	Window string `json:"window,omitempty"`
}

// OpenResult reports where an open request landed.
type OpenResult struct {
	Window string `json:"window"`
	Page   string `json:"page"`
	URL    string `json:"url"`
}

// VersionInfo reports the shell build and the engine behind it.
type VersionInfo struct {
	Build string `json:"build"`
	// Engine is the product string, empty when the engine is not
	// answering.
	Engine string `json:"engine,omitempty"`
	// WindowOpenEnabled reports whether window-creation requests are
	// being honored for this engine build.
	WindowOpenEnabled bool `json:"window_open_enabled"`
}

// Options wire the server to the rest of the shell.
type Options struct {
	Config   func() *config.Config
	Registry *tabs.Registry
	// MainWindow is used when an open request names no window.
	MainWindow string
	Engine     engine.Engine
	Gate       *version.Gate
	Build      string
	Metrics    *metrics.Metrics
	Logger     *logging.Logger
}

// Server serves the control API.
type Server struct {
	cfg        func() *config.Config
	registry   *tabs.Registry
	mainWindow string
	engine     engine.Engine
	gate       *version.Gate
	build      string
	metrics    *metrics.Metrics
	log        *logging.Logger
	router     chi.Router
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = func() *config.Config { return def }
	}

	s := &Server{
		cfg:        cfg,
		registry:   opts.Registry,
		mainWindow: opts.MainWindow,
		engine:     opts.Engine,
		gate:       opts.Gate,
		build:      opts.Build,
		metrics:    opts.Metrics,
		log:        log.Named("control"),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Post("/open", s.handleOpen)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.OkJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := VersionInfo{Build: s.build}
	if s.engine != nil {
		product, err := s.engine.Version(r.Context())
		if err != nil {
			s.log.Warn("engine version unavailable", zap.Error(err))
		} else {
			info.Engine = product
		}
	}
	if s.gate != nil {
		info.WindowOpenEnabled = s.gate.Active()
	}
	httputil.OkJSON(w, info)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	u, err := url.Parse(req.URL)
	if err != nil || !urlutil.IsValid(u) {
		httputil.BadRequest(w, fmt.Sprintf("invalid url %q", req.URL))
		return
	}

	windowID := req.Window
	if windowID == "" {
		windowID = s.mainWindow
	}
	opener, ok := s.registry.Lookup(windowID)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown window %q", windowID))
		return
	}

	background := s.cfg().Tabs.Background
	if req.Background != nil {
		background = *req.Background
	}

	page, err := opener.OpenTab(r.Context(), tabs.OpenOptions{
		Background: background,
		URL:        u,
	})
	if err != nil {
		s.log.Error("open tab failed",
			zap.String("window", windowID),
			zap.Stringer("url", u),
			zap.Error(err))
		httputil.BadGateway(w, err.Error())
		return
	}

	s.log.Info("opened tab",
		zap.String("window", windowID),
		zap.String("page", page.ID()),
		zap.Stringer("url", u),
		zap.Bool("background", background))
	httputil.OkJSON(w, OpenResult{
		Window: windowID,
		Page:   page.ID(),
		URL:    u.String(),
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully. Binding the address is the single-instance check: a
// second shell fails here and should hand off through the Client.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg().Control.Listen
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control listener on %s (is another instance running?): %w", addr, err)
	}

	srv := &http.Server{
		Handler:     s.router,
		IdleTimeout: 120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	s.log.Info("control server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
