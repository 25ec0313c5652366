package cmd

import (
	"context"
	"os"

	"github.com/HynoR/wsvpn/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wsvpn",
	Short: "wsvpn tunnel CLI",
	Long:  "A point-to-point layer-3 VPN tunnel over TLS-secured, Basic-Auth-gated WebSocket.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.Init(logLevel(cmd)); err != nil {
			logger.Logger.Errorf("failed to init logger: %v", err)
		}
	},
}

// logLevel resolves the log level the same way the original tunnel's
// RUST_LOG did: an explicitly passed --log-level always wins, an
// unset flag falls back to the TUNNEL_LOG environment variable, and
// an absent flag and env var both fall back to "info".
func logLevel(cmd *cobra.Command) string {
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		return level
	}
	if env := os.Getenv("TUNNEL_LOG"); env != "" {
		return env
	}
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "info"
	}
	return level
}

// ExecuteContext runs the CLI with the given context, propagated to
// subcommands via cobra's context. The retry supervisor checks it
// before each connect attempt and during backoff; a connect or pump
// run already in progress is not interrupted by its cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error); falls back to $TUNNEL_LOG, then info")
	rootCmd.PersistentFlags().String("tun-name", "tun0", "TUN device name")
	rootCmd.PersistentFlags().Int("tun-mtu", 1400, "TUN device MTU")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
}
