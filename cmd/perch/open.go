package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perchbrowser/perch/internal/control"
)

// OpenCmd creates the open command, a client for the control server of
// a running session.
func OpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open URL",
		Short: "Open a URL in the running session",
		Long: `Open hands a URL to the perch session already running on this
machine. Without --background the new tab takes focus; --window targets
a specific window instead of the main one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, args[0])
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&background, "background", false, "open the tab without focusing it")
	cmd.Flags().StringVar(&windowID, "window", "", "window to open the tab in (default: the main window)")

	return cmd
}

func runOpen(cmd *cobra.Command, arg string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	client := control.NewClient("http://" + cfg.Control.Listen)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if !client.Healthy(ctx) {
		return fmt.Errorf("no running perch session at %s", cfg.Control.Listen)
	}

	req := control.OpenRequest{URL: normalizeURL(arg), Window: windowID}
	// Only an explicit flag overrides the session's tabs.background.
	if cmd.Flags().Changed("background") {
		req.Background = &background
	}

	res, err := client.Open(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Opened %s (window %s, page %s)\n", res.URL, res.Window, res.Page)
	return nil
}
