//go:build linux

package api

import (
	"net"
	"testing"
	"time"
)

// pipeConnector hands out a single pre-established net.Conn, standing
// in for the TCP/TLS layers the real stack would have already run.
type pipeConnector struct {
	conn net.Conn
}

func (p *pipeConnector) Connect() (net.Conn, error) { return p.conn, nil }

func TestWSServerConnectorRejectsBadCredentials(t *testing.T) {
	clientSide, serverSide := net.Pipe()

	server := &WSServerConnector{
		Inner:    &pipeConnector{conn: serverSide},
		Username: "alice",
		Password: "correct-horse",
	}
	client := &WSClientConnector{
		Inner:    &pipeConnector{conn: clientSide},
		Hostname: "tunnel.example",
		Username: "alice",
		Password: "wrong-password",
	}

	serverErr := make(chan error, 1)
	go func() {
		_, err := server.Connect()
		serverErr <- err
	}()

	_, clientErr := client.Connect()
	if clientErr == nil {
		t.Fatal("expected client upgrade to fail on bad credentials")
	}

	select {
	case err := <-serverErr:
		if err == nil {
			t.Fatal("expected server-side upgrade to reject the connection")
		}
	case <-time.After(time.Second):
		t.Fatal("server Connect did not return")
	}
}

func TestWSUpgradeSucceedsAndCarriesAPacket(t *testing.T) {
	clientSide, serverSide := net.Pipe()

	server := &WSServerConnector{
		Inner:    &pipeConnector{conn: serverSide},
		Username: "alice",
		Password: "correct-horse",
	}
	client := &WSClientConnector{
		Inner:    &pipeConnector{conn: clientSide},
		Hostname: "tunnel.example",
		Username: "alice",
		Password: "correct-horse",
	}

	type connectResult struct {
		transport Transport
		err       error
	}
	serverRes := make(chan connectResult, 1)
	go func() {
		tr, err := server.Connect()
		serverRes <- connectResult{tr, err}
	}()

	clientTransport, err := client.Connect()
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	defer clientTransport.Close()

	res := <-serverRes
	if res.err != nil {
		t.Fatalf("server Connect: %v", res.err)
	}
	serverTransport := res.transport
	defer serverTransport.Close()

	payload := []byte{1, 2, 3, 4, 5}
	if err := clientTransport.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 1500)
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := serverTransport.Receive(buf)
		if err == nil {
			if n != len(payload) {
				t.Fatalf("received %d bytes, want %d", n, len(payload))
			}
			for i := range payload {
				if buf[i] != payload[i] {
					t.Fatalf("payload mismatch at %d: got %d want %d", i, buf[i], payload[i])
				}
			}
			return
		}
		if err != ErrWouldBlock {
			t.Fatalf("Receive: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for packet delivery")
		}
		time.Sleep(time.Millisecond)
	}
}
