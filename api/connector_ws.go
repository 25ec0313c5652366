package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultMaxPacket = 65536

// WSServerConnector runs the server side of the WebSocket upgrade over
// an already-connected (and, in the normal stack, already
// TLS-terminated) inner connection, validating HTTP Basic credentials
// before accepting the upgrade.
type WSServerConnector struct {
	Inner Connector

	Username string
	Password string

	// MaxPacket bounds a single received message; zero uses a default.
	MaxPacket int
}

func (c *WSServerConnector) maxPacket() int {
	if c.MaxPacket > 0 {
		return c.MaxPacket
	}
	return defaultMaxPacket
}

type wsUpgradeResult struct {
	conn *websocket.Conn
	err  error
}

func (c *WSServerConnector) Connect() (Transport, error) {
	conn, err := c.Inner.Connect()
	if err != nil {
		return nil, err
	}

	result := make(chan wsUpgradeResult, 1)
	upgrader := websocket.Upgrader{
		// The listener already bounds the single accepted client;
		// origin checking adds nothing for a point-to-point tunnel.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != c.Username || pass != c.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="access the service"`)
			w.WriteHeader(http.StatusUnauthorized)
			result <- wsUpgradeResult{err: errors.New("invalid or missing basic auth credentials")}
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			result <- wsUpgradeResult{err: fmt.Errorf("websocket upgrade failed: %w", err)}
			return
		}
		result <- wsUpgradeResult{conn: wsConn}
	})

	srv := &http.Server{Handler: handler}
	ln := newSingleConnListener(conn)
	go func() {
		_ = srv.Serve(ln)
	}()
	// ln.Close unblocks the listener's second Accept (which would
	// otherwise wait on l.done forever) so the Serve goroutine this
	// call launched always exits, success or rejection alike.
	defer ln.Close()

	res := <-result
	if res.err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("websocket upgrade rejected: %w", res.err)
	}
	return newWSTransport(res.conn, c.maxPacket())
}

// singleConnListener adapts one already-accepted net.Conn to the
// net.Listener interface net/http.Server.Serve requires, so the
// Basic-Auth-gated upgrade can run over a connection this process
// already owns instead of one net/http dialed itself.
type singleConnListener struct {
	conn net.Conn
	once sync.Once
	done chan struct{}
}

func newSingleConnListener(conn net.Conn) *singleConnListener {
	return &singleConnListener{conn: conn, done: make(chan struct{})}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	var c net.Conn
	l.once.Do(func() { c = l.conn })
	if c != nil {
		return c, nil
	}
	<-l.done
	return nil, io.EOF
}

func (l *singleConnListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }

// WSClientConnector issues the client side of the HTTP upgrade over an
// already-connected inner connection, attaching the Basic-Auth header
// the server validates.
type WSClientConnector struct {
	Inner Connector

	// Hostname is used to build the "/ws" upgrade URL; the inner
	// connector has already performed TLS verification against it, so
	// this client dials the plain "ws" scheme over the existing
	// encrypted connection rather than asking the dialer to perform a
	// second TLS handshake.
	Hostname string
	Username string
	Password string

	MaxPacket int
}

func (c *WSClientConnector) maxPacket() int {
	if c.MaxPacket > 0 {
		return c.MaxPacket
	}
	return defaultMaxPacket
}

func (c *WSClientConnector) Connect() (Transport, error) {
	conn, err := c.Inner.Connect()
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
		HandshakeTimeout: 15 * time.Second,
	}

	header := http.Header{}
	creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	header.Set("Authorization", "Basic "+creds)

	url := fmt.Sprintf("ws://%s/ws", c.Hostname)
	wsConn, resp, err := dialer.Dial(url, header)
	if err != nil {
		_ = conn.Close()
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("websocket upgrade rejected with 401 unauthorized: %w", err)
		}
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}

	return newWSTransport(wsConn, c.maxPacket())
}
