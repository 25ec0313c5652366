package api

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"
	"time"
)

const (
	retryBackoffBase   = time.Second
	retryBackoffJitter = 1024 * time.Millisecond
)

// RetrySupervisor wraps the pump so that any transport error triggers
// a full reconnect: call the connector stack's Connect again (which
// re-runs every layer), redo the peer handshake, and re-enter the pump. The TUN device is retained across
// attempts; only the transport is rebuilt.
type RetrySupervisor struct {
	Connector TransportConnector
	Tun       *TunDevice
	LocalAddr net.IP
	MaxPacket int

	// OnFirstConnect, if set, runs exactly once, after the first
	// successful handshake and TUN reconfiguration (not on every
	// reconnect). It exists so a post-up script can fire with the
	// peer address that was only just learned.
	OnFirstConnect func(peer net.IP)

	firstConnect sync.Once
}

// Run blocks until ctx is canceled, reconnecting indefinitely on
// connect or pump errors. It only returns nil on context cancellation.
// The context is checked before each attempt and during the backoff
// sleep; a Connect or pump run already in progress is not interrupted
// by cancellation.
func (r *RetrySupervisor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := r.runOnce(ctx); err != nil {
			log.Printf("tunnel error: %v", err)
			if err := sleepBackoff(ctx); err != nil {
				return nil
			}
			continue
		}
	}
}

// runOnce performs one connect-handshake-pump cycle. It returns an
// error for any failure the caller should back off and retry on; it
// never returns nil except by running the pump to a natural error
// (the pump only exits on error, so a nil here can't occur in
// practice, but is handled for completeness).
func (r *RetrySupervisor) runOnce(ctx context.Context) error {
	t, err := r.Connector.Connect()
	if err != nil {
		return fmt.Errorf("could not establish transport: %w", err)
	}

	peer, err := ExchangeHandshake(t, r.LocalAddr)
	if err != nil {
		_ = t.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	if err := r.Tun.Reconfigure(peer); err != nil {
		_ = t.Close()
		return fmt.Errorf("could not reconfigure tun device for peer %s: %w", peer, err)
	}

	if r.OnFirstConnect != nil {
		r.firstConnect.Do(func() { r.OnFirstConnect(peer) })
	}

	pump, err := NewPump(r.Tun, t, r.MaxPacket)
	if err != nil {
		_ = t.Close()
		return fmt.Errorf("could not start pump: %w", err)
	}

	log.Printf("tunnel established, peer %s", peer)
	runErr := pump.Run()

	// Close always releases the transport's fd (and, for wsTransport,
	// its eventfd and reader goroutine) before the next attempt, so no
	// descriptor ever leaks across a reconnect.
	if err := pump.Close(); err != nil {
		log.Printf("error releasing transport after disconnect: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("pump exited: %w", runErr)
	}
	return nil
}

func sleepBackoff(ctx context.Context) error {
	delay := retryBackoffBase + time.Duration(rand.Int63n(int64(retryBackoffJitter)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
