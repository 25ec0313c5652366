package client

import (
	"context"
	"fmt"
	"net"

	"github.com/HynoR/wsvpn/api"
	"github.com/HynoR/wsvpn/config"
	"github.com/HynoR/wsvpn/internal/logger"
	"github.com/HynoR/wsvpn/service/tunnel"
)

const maxPacket = 65536

// Service runs the client side of the tunnel: dial the server,
// perform TLS and the WebSocket upgrade with Basic-Auth credentials,
// and hand the resulting transport to the retry-wrapped pump.
type Service struct {
	Manager tunnel.Manager
}

func New() *Service {
	return &Service{Manager: tunnel.DefaultManager{}}
}

func (s *Service) Run(ctx context.Context, cfg config.ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid client configuration: %w", err)
	}

	local := net.ParseIP(cfg.LocalAddr)
	if local == nil {
		return fmt.Errorf("invalid local-addr %q", cfg.LocalAddr)
	}

	connector, err := tunnel.BuildClientConnector(cfg)
	if err != nil {
		return fmt.Errorf("could not build connector stack: %w", err)
	}

	dev, err := tunnel.CreateTun(cfg.Common, local)
	if err != nil {
		return err
	}
	defer dev.Close()

	logger.Logger.Infof("connecting to %s, tun %s (%s)", cfg.Server, dev.Name, local)

	sup := &api.RetrySupervisor{
		Connector: connector,
		Tun:       dev,
		LocalAddr: local,
		MaxPacket: maxPacket,
		OnFirstConnect: func(peer net.IP) {
			if cfg.ScriptPath == "" {
				return
			}
			if err := tunnel.RunPostUpScript(cfg.ScriptPath, local, peer, dev.Name); err != nil {
				logger.Logger.Errorf("post-up script failed: %v", err)
			}
		},
	}

	return s.Manager.Run(ctx, sup)
}
