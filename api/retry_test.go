package api

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

type failConnector struct {
	err error
}

func (f *failConnector) Connect() (Transport, error) { return nil, f.err }

type connectOnceTransport struct {
	sendErr error
	recvErr error
	closed  bool
}

func (t *connectOnceTransport) Send(buf []byte) error { return t.sendErr }
func (t *connectOnceTransport) Flush() error           { return nil }
func (t *connectOnceTransport) Receive(buf []byte) (int, error) {
	return 0, t.recvErr
}
func (t *connectOnceTransport) Fd() int { return -1 }
func (t *connectOnceTransport) Close() error {
	t.closed = true
	return nil
}

type handshakeFailConnector struct {
	transport *connectOnceTransport
}

func (c *handshakeFailConnector) Connect() (Transport, error) { return c.transport, nil }

func TestRunOnceReturnsConnectError(t *testing.T) {
	sup := &RetrySupervisor{
		Connector: &failConnector{err: errors.New("dial refused")},
		LocalAddr: net.IPv4(192, 168, 200, 1),
		MaxPacket: 1500,
	}

	err := sup.runOnce(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failing connector")
	}
}

func TestRunOnceReturnsHandshakeErrorAndClosesTransport(t *testing.T) {
	transport := &connectOnceTransport{recvErr: io.ErrClosedPipe}
	sup := &RetrySupervisor{
		Connector: &handshakeFailConnector{transport: transport},
		LocalAddr: net.IPv4(192, 168, 200, 1),
		MaxPacket: 1500,
	}

	err := sup.runOnce(context.Background())
	if err == nil {
		t.Fatal("expected a handshake error")
	}
	if !transport.closed {
		t.Fatal("expected the transport to be closed after a failed handshake")
	}
}

func TestSleepBackoffRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepBackoff(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("sleepBackoff did not return promptly on cancellation: %v", elapsed)
	}
}

func TestRunStopsOnContextCancellationWithoutConnecting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sup := &RetrySupervisor{
		Connector: &failConnector{err: errors.New("should never be called")},
	}

	if err := sup.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
