package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/HynoR/wsvpn/models"
	"golang.org/x/crypto/pkcs12"
)

// handshakePhaseTimeout bounds the TLS handshake itself; it is
// disabled once the handshake completes so steady-state tunnel
// traffic is never subject to an idle cutoff.
const handshakePhaseTimeout = 15 * time.Second

// TLSServerConnector terminates a server-side TLS handshake on top of
// an inner connector (normally a ListenConnector). The identity can
// come from a PEM cert+key pair or a PKCS#12 bundle.
type TLSServerConnector struct {
	Inner Connector

	CertPath string
	KeyPath  string

	PKCS12Path     string
	PKCS12Password string

	config *tls.Config
}

func (c *TLSServerConnector) prepare() error {
	if c.config != nil {
		return nil
	}

	var cert tls.Certificate
	var err error
	switch {
	case c.PKCS12Path != "":
		cert, err = loadPKCS12Cert(c.PKCS12Path, c.PKCS12Password)
	default:
		cert, err = tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	}
	if err != nil {
		return fmt.Errorf("could not load server identity: %w", err)
	}

	c.config = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return nil
}

func (c *TLSServerConnector) Connect() (net.Conn, error) {
	if err := c.prepare(); err != nil {
		return nil, err
	}
	inner, err := c.Inner.Connect()
	if err != nil {
		return nil, err
	}
	timeout := models.NewTimeoutConn(inner, handshakePhaseTimeout)
	conn := tls.Server(timeout, c.config)
	if err := conn.Handshake(); err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("tls server handshake failed: %w", err)
	}
	timeout.Disable()
	return conn, nil
}

func loadPKCS12Cert(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("could not read pkcs12 bundle: %w", err)
	}
	key, leaf, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("could not decode pkcs12 bundle: %w", err)
	}
	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range caCerts {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}

// TLSClientConnector performs a client-side TLS handshake against a
// given hostname (SNI and name verification), trusting either a CA
// certificate file or (for development only) any certificate.
type TLSClientConnector struct {
	Inner Connector

	Hostname           string
	CAPath             string
	AcceptInvalidCerts bool

	config *tls.Config
}

func (c *TLSClientConnector) prepare() error {
	if c.config != nil {
		return nil
	}

	cfg := &tls.Config{
		ServerName: c.Hostname,
		MinVersion: tls.VersionTLS12,
	}

	if c.AcceptInvalidCerts {
		cfg.InsecureSkipVerify = true
	} else if c.CAPath != "" {
		pem, err := os.ReadFile(c.CAPath)
		if err != nil {
			return fmt.Errorf("could not read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("ca certificate file %s contains no valid certificates", c.CAPath)
		}
		cfg.RootCAs = pool
	}

	c.config = cfg
	return nil
}

func (c *TLSClientConnector) Connect() (net.Conn, error) {
	if err := c.prepare(); err != nil {
		return nil, err
	}
	inner, err := c.Inner.Connect()
	if err != nil {
		return nil, err
	}
	timeout := models.NewTimeoutConn(inner, handshakePhaseTimeout)
	conn := tls.Client(timeout, c.config)
	if err := conn.Handshake(); err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("tls client handshake failed: %w", err)
	}
	timeout.Disable()
	return conn, nil
}
