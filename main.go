package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/HynoR/wsvpn/cmd"
	"github.com/HynoR/wsvpn/internal/logger"
)

// exitTunnelError is returned on any fatal startup or runtime error
// from the tunnel (connect/handshake/pump failures already retry
// internally via api/retry.go; reaching main's error path means the
// CLI itself rejected the invocation or a non-retriable setup step,
// such as opening the TUN device, failed).
const exitTunnelError = 1

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer logger.Close()

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Logger.Errorf("wsvpn exited: %v", err)
		os.Exit(exitTunnelError)
	}
}
