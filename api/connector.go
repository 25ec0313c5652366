package api

import "net"

// Connector is a capability that produces a ready-to-use transport.
// Layers compose by wrapping: a higher layer's Connect calls its
// inner connector's Connect, then performs its own handshake over the
// returned connection. Each call to Connect yields a fresh,
// independent connection or transport.
type Connector interface {
	Connect() (net.Conn, error)
}

// TransportConnector is the top of the stack: it produces a
// fully-framed Transport (after the WebSocket upgrade), ready for the
// packet pump.
type TransportConnector interface {
	Connect() (Transport, error)
}
