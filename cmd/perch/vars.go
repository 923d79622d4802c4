package cli

import (
	"github.com/spf13/cobra"

	"github.com/perchbrowser/perch/internal/config"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile    string
	logLevel   string
	headless   bool
	background bool
	windowID   string
)

// BuildVersion is stamped by the build; main overrides it.
var BuildVersion = "dev"

// embeddedDefaults is the defaults file compiled into the binary (set
// by main before Execute).
var embeddedDefaults []byte

// bootEnv carries the PERCH_* environment settings (set by main).
var bootEnv config.Bootstrap

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(defaults []byte, boot config.Bootstrap) *cobra.Command {
	embeddedDefaults = defaults
	bootEnv = boot

	rootCmd := &cobra.Command{
		Use:   "perch [url]",
		Short: "Perch - browser shell",
		Long: `Perch hosts web pages in an embedded engine and answers the
questions the engine asks back: dialogs, certificate errors, window
opens, authentication.

Just type 'perch' to start a browsing session, or 'perch URL' to open
a page right away. While a session runs, 'perch open URL' hands the
URL to it instead of starting a second one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(args)
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	// Root-only flags
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run the engine without a visible window")

	// Add commands
	rootCmd.AddCommand(OpenCmd())
	rootCmd.AddCommand(DoctorCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}

// loadConfig resolves the config file path (flag, then environment,
// then the platform default) and loads it over the embedded defaults.
func loadConfig() (*config.Config, string, error) {
	path := cfgFile
	if path == "" {
		path = bootEnv.ConfigPath
	}
	if path == "" {
		path = config.DefaultUserPath()
	}
	cfg, err := config.Load(embeddedDefaults, path)
	if err != nil {
		return nil, path, err
	}
	if logLevel == "" && bootEnv.LogLevel != "" {
		cfg.Logging.Level = bootEnv.LogLevel
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, path, nil
}
