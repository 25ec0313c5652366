package config

import "fmt"

// Common holds the flags shared by both the server and client
// subcommands: the local TUN device's name and MTU.
type Common struct {
	TunName string
	TunMTU  int
}

func (c Common) Validate() error {
	if c.TunName == "" {
		return fmt.Errorf("tun-name must not be empty")
	}
	if c.TunMTU <= 0 {
		return fmt.Errorf("tun-mtu must be positive, got %d", c.TunMTU)
	}
	return nil
}

// ServerConfig holds everything needed to run the server side of the
// tunnel: where to listen, the TLS identity, and the Basic-Auth
// credentials the WebSocket upgrade validates.
type ServerConfig struct {
	Common

	Listen string

	CertPath       string
	KeyPath        string
	PKCS12Path     string
	PKCS12Password string

	Username string
	Password string

	// LocalAddr is this side's TUN address (default 192.168.200.1).
	// The peer's address is never configured statically: it is learned
	// from the handshake and applied to the TUN after every reconnect.
	LocalAddr string
}

func (c ServerConfig) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return err
	}
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.PKCS12Path == "" && (c.CertPath == "" || c.KeyPath == "") {
		return fmt.Errorf("either --pkcs12-path or both --cert-path and --key-path must be set")
	}
	if c.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if c.LocalAddr == "" {
		return fmt.Errorf("local-addr must be set")
	}
	return nil
}

// ClientConfig holds everything needed to run the client side: the
// server address, TLS verification settings, and credentials.
type ClientConfig struct {
	Common

	Server   string
	Hostname string

	CAPath             string
	AcceptInvalidCerts bool

	Username string
	Password string

	// LocalAddr is this side's TUN address (default 192.168.200.2).
	LocalAddr string

	ScriptPath string
}

func (c ClientConfig) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return err
	}
	if c.Server == "" {
		return fmt.Errorf("server must not be empty")
	}
	if c.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if c.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if c.LocalAddr == "" {
		return fmt.Errorf("local-addr must be set")
	}
	return nil
}
