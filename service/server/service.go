package server

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

// Service runs the server side of the tunnel: accept one client at a
// time on a bound listener, terminate TLS and the WebSocket upgrade,
// and hand the resulting transport to the retry-wrapped pump.
type Service struct {
	Manager tunnel.Manager
}

func New() *Service {
	return &Service{Manager: tunnel.DefaultManager{}}
}

func (s *Service) Run(ctx context.Context, cfg config.ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	local := net.ParseIP(cfg.LocalAddr)
	if local == nil {
		return fmt.Errorf("invalid local-addr %q", cfg.LocalAddr)
	}

	connector, err := tunnel.BuildServerConnector(cfg)
	if err != nil {
		return fmt.Errorf("could not build connector stack: %w", err)
	}

	dev, err := tunnel.CreateTun(cfg.Common, local)
	if err != nil {
		return err
	}
	defer dev.Close()

	logger.Logger.Infof("listening on %s, tun %s (%s)", cfg.Listen, dev.Name, local)

	sup := &api.RetrySupervisor{
		Connector: connector,
		Tun:       dev,
		LocalAddr: local,
		MaxPacket: maxPacket,
	}

	return s.Manager.Run(ctx, sup)
}
