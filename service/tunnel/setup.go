package tunnel

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/HynoR/wsvpn/api"
	"github.com/HynoR/wsvpn/config"
)

// BuildServerConnector assembles the server-side connector stack:
// TCP-listen -> TLS-server -> WebSocket-server (Basic-Auth gated).
// The listener is bound here, so a bind failure is a startup error
// rather than one the retry supervisor retries.
func BuildServerConnector(cfg config.ServerConfig) (api.TransportConnector, error) {
	listen := &api.ListenConnector{Addr: cfg.Listen}
	if err := listen.Listen(); err != nil {
		return nil, err
	}

	tlsLayer := &api.TLSServerConnector{
		Inner:          listen,
		CertPath:       cfg.CertPath,
		KeyPath:        cfg.KeyPath,
		PKCS12Path:     cfg.PKCS12Path,
		PKCS12Password: cfg.PKCS12Password,
	}

	ws := &api.WSServerConnector{
		Inner:    tlsLayer,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	return ws, nil
}

// BuildClientConnector assembles the client-side connector stack:
// TCP-dial -> TLS-client -> WebSocket-client (Basic-Auth credential
// injection).
func BuildClientConnector(cfg config.ClientConfig) (api.TransportConnector, error) {
	dial := &api.DialConnector{Addr: cfg.Server}

	tlsLayer := &api.TLSClientConnector{
		Inner:              dial,
		Hostname:           cfg.Hostname,
		CAPath:             cfg.CAPath,
		AcceptInvalidCerts: cfg.AcceptInvalidCerts,
	}

	ws := &api.WSClientConnector{
		Inner:    tlsLayer,
		Hostname: cfg.Hostname,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	return ws, nil
}

// CreateTun opens and configures the local TUN device. The peer
// (destination) address is not yet known here — it is learned from
// the handshake on the first and every subsequent connect — so it is
// left as the unspecified address and corrected by the first call to
// TunDevice.Reconfigure before the pump ever runs.
func CreateTun(common config.Common, local net.IP) (*api.TunDevice, error) {
	dev, err := api.OpenTun(api.TunConfig{
		Name:  common.TunName,
		MTU:   common.TunMTU,
		Local: local,
		Peer:  net.IPv4zero,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tun device: %w", err)
	}
	return dev, nil
}

// RunPostUpScript executes the optional post-up hook with the
// environment variables spec.md §6 specifies: server_ip, peer_ip,
// dev, script_type=up.
func RunPostUpScript(scriptPath string, local, peer net.IP, devName string) error {
	if scriptPath == "" {
		return nil
	}

	cmd := exec.Command(scriptPath)
	cmd.Env = append(os.Environ(),
		"server_ip="+local.String(),
		"peer_ip="+peer.String(),
		"dev="+devName,
		"script_type=up",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("post-up script %s failed: %w", scriptPath, err)
	}
	return nil
}
