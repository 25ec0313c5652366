package api

import (
	"testing"
	"time"
)

func TestListenConnectorAcceptsDialConnector(t *testing.T) {
	listen := &ListenConnector{Addr: "127.0.0.1:0"}
	if err := listen.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listen.Close()

	addr := listen.listener.Addr().String()
	dial := &DialConnector{Addr: addr}

	type acceptResult struct {
		err error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		_, err := listen.Connect()
		accepted <- acceptResult{err}
	}()

	clientConn, err := dial.Connect()
	if err != nil {
		t.Fatalf("dial Connect: %v", err)
	}
	defer clientConn.Close()

	select {
	case res := <-accepted:
		if res.err != nil {
			t.Fatalf("listen Connect: %v", res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener never accepted the dialed connection")
	}
}

func TestListenConnectorClosesCleanlyBeforeListen(t *testing.T) {
	listen := &ListenConnector{Addr: "127.0.0.1:0"}
	if err := listen.Close(); err != nil {
		t.Fatalf("Close before Listen: %v", err)
	}
}
