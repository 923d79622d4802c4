package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perchbrowser/perch/internal/control"
)

// VersionCmd creates the version command.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("perch %s\n", BuildVersion)
			printSessionVersion()
		},
	}
}

// printSessionVersion adds the running session's engine details when
// one answers. Silence is normal: no session, nothing to report.
func printSessionVersion() {
	cfg, _, err := loadConfig()
	if err != nil {
		return
	}

	client := control.NewClient("http://" + cfg.Control.Listen)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := client.Version(ctx)
	if err != nil {
		return
	}
	if info.Engine != "" {
		fmt.Printf("engine %s\n", info.Engine)
	}
	state := "disabled"
	if info.WindowOpenEnabled {
		state = "enabled"
	}
	fmt.Printf("window.open %s\n", state)
}
