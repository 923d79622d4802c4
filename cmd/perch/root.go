package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/control"
	"github.com/perchbrowser/perch/internal/engine/cdp"
	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
	"github.com/perchbrowser/perch/internal/metrics"
	"github.com/perchbrowser/perch/internal/policy"
	"github.com/perchbrowser/perch/internal/tabs"
	"github.com/perchbrowser/perch/internal/urlutil"
	"github.com/perchbrowser/perch/internal/version"
)

const (
	closeTimeout   = 10 * time.Second
	versionTimeout = 5 * time.Second
	handoffTimeout = 3 * time.Second
)

// runBrowse starts a browsing session: engine, main window, control
// server. When another session already owns the control address the
// URL argument is handed to it instead of starting a second engine.
func runBrowse(args []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	if handled, err := handOff(cfg, args); handled {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\n\033[33mReceived signal: %v - shutting down...\033[0m\n", sig)
		cancel()
	}()

	bus := events.NewBus(events.WithLogger(log))
	defer bus.Close()
	mtr := metrics.New()

	store := config.NewStore(cfg, embeddedDefaults, cfgPath,
		config.WithLogger(log), config.WithBus(bus))
	go func() {
		if err := store.Watch(ctx); err != nil {
			log.Warn("config watch stopped", zap.Error(err))
		}
	}()

	// The engine gets its own lifetime so pages shut down before the
	// browser does; ctx cancellation reaches it through the explicit
	// Close below.
	eng, err := cdp.New(context.Background(), cdp.Options{
		ExecutablePath: cfg.Engine.ExecutablePath,
		RemoteURL:      cfg.Engine.RemoteURL,
		Headless:       cfg.Engine.Headless || headless,
		NoSandbox:      cfg.Engine.NoSandbox,
		UserDataDir:    cfg.Engine.UserDataDir,
		InterceptAuth:  cfg.Engine.InterceptAuth,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		if err := eng.Close(closeCtx); err != nil {
			log.Warn("engine close failed", zap.Error(err))
		}
	}()

	versionCtx, versionCancel := context.WithTimeout(ctx, versionTimeout)
	product, err := eng.Version(versionCtx)
	versionCancel()
	if err != nil {
		log.Warn("engine version unavailable", zap.Error(err))
	}
	gate := version.NewGate(product)
	if !gate.Active() {
		log.Warn("window.open requests will be denied", zap.String("reason", gate.Reason()))
	}

	registry := tabs.NewRegistry()
	prompter := newStdioPrompter(os.Stdin, os.Stdout)
	pol := policy.New(store.Current, prompter,
		policy.WithLogger(log), policy.WithMetrics(mtr))

	host := newWindowHost(hostOptions{
		Engine:   eng,
		Config:   store.Current,
		Policy:   pol,
		Gate:     gate,
		Registry: registry,
		Bus:      bus,
		Metrics:  mtr,
		Logger:   log,
	})
	defer host.Shutdown()

	srv := control.New(control.Options{
		Config:     store.Current,
		Registry:   registry,
		MainWindow: host.ID(),
		Engine:     eng,
		Gate:       gate,
		Build:      BuildVersion,
		Metrics:    mtr,
		Logger:     log,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("control server: %w", err)
		}
	}()

	if len(args) == 1 {
		if _, err := host.open(ctx, normalizeURL(args[0]), false); err != nil {
			fmt.Printf("\033[31mError: %v\033[0m\n", err)
		}
	}

	printStartupBanner(cfg.Control.Listen, product, gate, cfgPath)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	fmt.Println("\033[32mPerch stopped.\033[0m")
	return nil
}

// handOff sends the URL argument to an already-running session. The
// control address doubles as the single-instance lock: when something
// answers /healthz there, this process must not start an engine.
func handOff(cfg *config.Config, args []string) (bool, error) {
	client := control.NewClient("http://" + cfg.Control.Listen)
	ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
	defer cancel()

	if !client.Healthy(ctx) {
		return false, nil
	}
	if len(args) == 0 {
		return true, fmt.Errorf("perch is already running at %s (use 'perch open URL')", cfg.Control.Listen)
	}

	res, err := client.Open(ctx, control.OpenRequest{URL: normalizeURL(args[0])})
	if err != nil {
		return true, err
	}
	fmt.Printf("Opened %s in the running session (page %s)\n", res.URL, res.Page)
	return true, nil
}

// normalizeURL makes a bare host argument loadable: "example.org"
// becomes "https://example.org". URLs with a loadable scheme pass
// through. The scheme check matters because "localhost:8080" parses as
// scheme "localhost", not as a host and port.
func normalizeURL(arg string) string {
	if u, err := url.Parse(arg); err == nil && urlutil.IsValid(u) {
		switch u.Scheme {
		case "http", "https", "file", "about", "data":
			return arg
		}
	}
	return "https://" + arg
}

// printStartupBanner prints a clean, clickable startup message
func printStartupBanner(listen, product string, gate *version.Gate, cfgPath string) {
	if product == "" {
		product = "unknown"
	}
	fmt.Println()
	fmt.Println("  \033[1;32mPerch is running\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1;36m→\033[0m Control: \033[4;34mhttp://%s\033[0m\n", listen)
	fmt.Printf("  \033[1;36m→\033[0m Engine:  %s\n", product)
	if !gate.Active() {
		fmt.Printf("  \033[33m⚠\033[0m window.open disabled: %s\n", gate.Reason())
	}
	fmt.Println()
	fmt.Printf("  \033[2mConfig: %s\033[0m\n", cfgPath)
	fmt.Println()
	fmt.Println("  \033[2mPress Ctrl+C to stop\033[0m")
	fmt.Println()
}
