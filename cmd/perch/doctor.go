package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/perchbrowser/perch/internal/config"
	"github.com/perchbrowser/perch/internal/control"
	"github.com/perchbrowser/perch/internal/engine/cdp"
	"github.com/perchbrowser/perch/internal/version"
)

// DoctorCmd creates the doctor command for health checks
func DoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation and diagnose issues",
		Long: `Run diagnostics on your perch installation.

Checks:
  - Configuration file
  - Engine binary or remote endpoint
  - window.open support of the engine
  - Running session

Examples:
  perch doctor           # Run all diagnostics
  perch doctor --fix     # Attempt to fix issues`,
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(fix)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Attempt to fix detected issues")

	return cmd
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
}

func runDoctor(fix bool) {
	fmt.Println("\033[1m🔍 Perch Doctor\033[0m")
	fmt.Println("================")
	fmt.Println()

	var results []checkResult
	results = append(results, checkConfig()...)
	results = append(results, checkEngine()...)
	results = append(results, checkSession()...)

	okCount := 0
	warnCount := 0
	errorCount := 0

	for _, r := range results {
		switch r.status {
		case "ok":
			fmt.Printf("\033[32m✓\033[0m %s: %s\n", r.name, r.message)
			okCount++
		case "warn":
			fmt.Printf("\033[33m⚠\033[0m %s: %s\n", r.name, r.message)
			warnCount++
		case "error":
			fmt.Printf("\033[31m✗\033[0m %s: %s\n", r.name, r.message)
			errorCount++
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  \033[32m%d passed\033[0m", okCount)
	if warnCount > 0 {
		fmt.Printf("  \033[33m%d warnings\033[0m", warnCount)
	}
	if errorCount > 0 {
		fmt.Printf("  \033[31m%d errors\033[0m", errorCount)
	}
	fmt.Println()

	if fix {
		fmt.Println()
		runFixes(results)
	}

	if errorCount > 0 {
		os.Exit(1)
	}
}

func checkConfig() []checkResult {
	var results []checkResult

	path := cfgFile
	if path == "" {
		path = bootEnv.ConfigPath
	}
	if path == "" {
		path = config.DefaultUserPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		results = append(results, checkResult{
			name:    "Config File",
			status:  "warn",
			message: fmt.Sprintf("%s not found, using defaults (run 'perch doctor --fix' to create it)", path),
		})
	} else if _, err := config.Load(embeddedDefaults, path); err != nil {
		results = append(results, checkResult{
			name:    "Config File",
			status:  "error",
			message: err.Error(),
		})
	} else {
		results = append(results, checkResult{
			name:    "Config File",
			status:  "ok",
			message: path,
		})
	}

	return results
}

func checkEngine() []checkResult {
	var results []checkResult

	cfg, _, err := loadConfig()
	if err != nil {
		// checkConfig already reported the cause.
		return results
	}

	if cfg.Engine.RemoteURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		product, err := cdp.EndpointProduct(ctx, cfg.Engine.RemoteURL)
		if err != nil {
			results = append(results, checkResult{
				name:    "Engine Endpoint",
				status:  "error",
				message: fmt.Sprintf("%s not reachable: %v", cfg.Engine.RemoteURL, err),
			})
			return results
		}
		results = append(results, checkResult{
			name:    "Engine Endpoint",
			status:  "ok",
			message: fmt.Sprintf("%s (%s)", cfg.Engine.RemoteURL, product),
		})
		results = append(results, windowOpenCheck(product))
		return results
	}

	execPath, err := cdp.LocateExecutable(cfg.Engine.ExecutablePath)
	if err != nil {
		results = append(results, checkResult{
			name:    "Engine Binary",
			status:  "error",
			message: "no engine binary found (install Chrome/Chromium or set engine.executable_path)",
		})
		return results
	}
	results = append(results, checkResult{
		name:    "Engine Binary",
		status:  "ok",
		message: execPath,
	})

	return results
}

func checkSession() []checkResult {
	var results []checkResult

	cfg, _, err := loadConfig()
	if err != nil {
		return results
	}

	client := control.NewClient("http://" + cfg.Control.Listen)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.Healthy(ctx) {
		results = append(results, checkResult{
			name:    "Session",
			status:  "warn",
			message: fmt.Sprintf("no session running at %s", cfg.Control.Listen),
		})
		return results
	}

	info, err := client.Version(ctx)
	if err != nil {
		results = append(results, checkResult{
			name:    "Session",
			status:  "warn",
			message: fmt.Sprintf("running at %s but /version failed: %v", cfg.Control.Listen, err),
		})
		return results
	}

	results = append(results, checkResult{
		name:    "Session",
		status:  "ok",
		message: fmt.Sprintf("running at %s (perch %s)", cfg.Control.Listen, info.Build),
	})
	if info.Engine != "" {
		results = append(results, windowOpenCheck(info.Engine))
	}

	return results
}

// windowOpenCheck grades the engine's window.open support from its
// product string.
func windowOpenCheck(product string) checkResult {
	gate := version.NewGate(product)
	if gate.Active() {
		return checkResult{
			name:    "window.open",
			status:  "ok",
			message: fmt.Sprintf("supported (%s)", product),
		}
	}
	return checkResult{
		name:    "window.open",
		status:  "warn",
		message: gate.Reason(),
	}
}

// runFixes creates the default config file when it is missing. That is
// the only issue doctor knows how to fix.
func runFixes(results []checkResult) {
	for _, r := range results {
		if r.name != "Config File" || r.status == "ok" || r.status == "error" {
			continue
		}
		path := cfgFile
		if path == "" {
			path = bootEnv.ConfigPath
		}
		if path == "" {
			path = config.DefaultUserPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Printf("\033[31m✗\033[0m create %s: %v\n", filepath.Dir(path), err)
			return
		}
		if err := os.WriteFile(path, embeddedDefaults, 0o644); err != nil {
			fmt.Printf("\033[31m✗\033[0m write %s: %v\n", path, err)
			return
		}
		fmt.Printf("\033[32m✓\033[0m wrote default config to %s\n", path)
	}
}
