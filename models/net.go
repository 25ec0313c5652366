package models

import (
	"net"
	"sync/atomic"
	"time"
)

// TimeoutConn enforces an idle read/write deadline on every call,
// refreshed each time. Disable turns it into a plain pass-through;
// the TLS connectors call it as soon as the TLS handshake completes,
// so the WebSocket upgrade and steady-state traffic are never subject
// to this idle cutoff.
type TimeoutConn struct {
	net.Conn
	idleTimeout atomic.Int64 // nanoseconds; 0 disables enforcement
}

// NewTimeoutConn wraps conn with the given idle deadline.
func NewTimeoutConn(conn net.Conn, idleTimeout time.Duration) *TimeoutConn {
	c := &TimeoutConn{Conn: conn}
	c.idleTimeout.Store(int64(idleTimeout))
	return c
}

func (c *TimeoutConn) Read(b []byte) (int, error) {
	if d := c.idleTimeout.Load(); d > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(time.Duration(d))); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *TimeoutConn) Write(b []byte) (int, error) {
	if d := c.idleTimeout.Load(); d > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(time.Duration(d))); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// Disable stops further deadlines from being set and clears any
// deadline already pending, returning the connection to ordinary
// blocking (or, once the pump makes it non-blocking, poller-driven)
// semantics.
func (c *TimeoutConn) Disable() {
	c.idleTimeout.Store(0)
	_ = c.Conn.SetDeadline(time.Time{})
}
