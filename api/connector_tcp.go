package api

import (
	"fmt"
	"net"
)

// DialConnector opens a fresh TCP connection to a fixed address on
// every Connect call.
type DialConnector struct {
	Addr string
}

func (c *DialConnector) Connect() (net.Conn, error) {
	conn, err := net.Dial("tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", c.Addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// ListenConnector accepts exactly one client per Connect call from a
// bound listener. The listener stays bound across Connect calls, so
// when the retry supervisor reconnects it simply accepts the next
// client on the same listener.
type ListenConnector struct {
	Addr string

	listener net.Listener
}

// Listen binds the listener. Connect calls it on first use if it has
// not been called yet.
func (c *ListenConnector) Listen() error {
	l, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("could not bind %s: %w", c.Addr, err)
	}
	c.listener = l
	return nil
}

func (c *ListenConnector) Connect() (net.Conn, error) {
	if c.listener == nil {
		if err := c.Listen(); err != nil {
			return nil, err
		}
	}
	conn, err := c.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("could not accept connection: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// Close releases the bound listener, if any.
func (c *ListenConnector) Close() error {
	if c.listener == nil {
		return nil
	}
	return c.listener.Close()
}
