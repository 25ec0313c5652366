package api

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// packetBuffer holds at most one in-flight packet. It is either
// empty (length 0), filling (end < length), or ready
// (end == length > 0). Both the TUN and the transport deliver whole
// packets per read, so the pump moves a buffer straight from empty to
// ready.
type packetBuffer struct {
	buf    []byte
	end    int
	length int
}

func newPacketBuffer(size int) *packetBuffer {
	return &packetBuffer{buf: make([]byte, size)}
}

func (b *packetBuffer) empty() bool { return b.length == 0 }
func (b *packetBuffer) ready() bool { return b.length > 0 && b.end == b.length }
func (b *packetBuffer) reset()      { b.end, b.length = 0, 0 }

// pumpSide is one endpoint of the pump: either the TUN device or the
// transport. outbound is the buffer filled by reading from this side;
// inbound is the buffer drained by writing to this side.
type pumpSide struct {
	fd   int
	name string

	outbound *packetBuffer
	inbound  *packetBuffer
}

// Pump shuttles packets between a TUN device and a transport using a
// single-threaded, poller-driven event loop. Each run is one
// reconnect cycle; the retry supervisor constructs a fresh Pump (new
// transport, same TUN) after any error.
type Pump struct {
	poller *Poller
	tun    *TunDevice
	t      Transport

	tunSide   *pumpSide
	transSide *pumpSide

	maxPacket int
}

// NewPump wires a TUN device and a transport together. Both fds are
// registered with a fresh poller in readable-only interest, per the
// pump's initialization contract.
func NewPump(tun *TunDevice, t Transport, maxPacket int) (*Pump, error) {
	poller, err := New()
	if err != nil {
		return nil, fmt.Errorf("could not create poller: %w", err)
	}

	if err := unix.SetNonblock(tun.Fd(), true); err != nil {
		_ = poller.Close()
		return nil, fmt.Errorf("could not set tun fd non-blocking: %w", err)
	}

	tunToTransport := newPacketBuffer(maxPacket)
	transportToTun := newPacketBuffer(maxPacket)

	p := &Pump{
		poller:    poller,
		tun:       tun,
		t:         t,
		maxPacket: maxPacket,
		tunSide: &pumpSide{
			fd:       tun.Fd(),
			name:     "tun",
			outbound: tunToTransport,
			inbound:  transportToTun,
		},
		transSide: &pumpSide{
			fd:       t.Fd(),
			name:     "transport",
			outbound: transportToTun,
			inbound:  tunToTransport,
		},
	}

	if err := poller.Add(p.tunSide.fd, Interest{Readable: true}); err != nil {
		_ = poller.Close()
		return nil, fmt.Errorf("could not register tun fd: %w", err)
	}
	if err := poller.Add(p.transSide.fd, Interest{Readable: true}); err != nil {
		_ = poller.Close()
		return nil, fmt.Errorf("could not register transport fd: %w", err)
	}

	return p, nil
}

// Run drives the event loop until an unrecoverable error occurs.
// Would-block is handled internally; any other error (including EOF
// and a clean zero-length read, treated as EOF-equivalent) is returned
// so the retry supervisor can reconnect.
func (p *Pump) Run() error {
	events := make([]Event, 2)
	for {
		ready, err := p.poller.Wait(events, -1)
		if err != nil {
			return fmt.Errorf("poller wait failed: %w", err)
		}

		for _, ev := range ready {
			if err := p.handleEvent(ev); err != nil {
				return err
			}
		}

		if err := p.rearm(); err != nil {
			return err
		}
	}
}

func (p *Pump) handleEvent(ev Event) error {
	var side *pumpSide
	switch ev.Fd {
	case p.tunSide.fd:
		side = p.tunSide
	case p.transSide.fd:
		side = p.transSide
	default:
		return nil
	}

	if ev.Readable && side.outbound.empty() {
		if err := p.readSide(side); err != nil {
			return err
		}
	}
	if ev.Writable && side.inbound.ready() {
		if err := p.writeSide(side); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pump) readSide(side *pumpSide) error {
	buf := side.outbound
	if side == p.tunSide {
		n, err := p.tun.Read(buf.buf)
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return fmt.Errorf("tun read failed: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("tun read returned eof")
		}
		if err := ValidateIPv4Length(n, len(buf.buf)); err != nil {
			return err
		}
		buf.length = n
		buf.end = n
		return nil
	}

	n, err := p.t.Receive(buf.buf)
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil
		}
		return fmt.Errorf("transport receive failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transport receive returned eof")
	}
	buf.length = n
	buf.end = n
	return nil
}

func (p *Pump) writeSide(side *pumpSide) error {
	buf := side.inbound
	if side == p.tunSide {
		n, err := p.tun.Write(buf.buf[:buf.length])
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return fmt.Errorf("tun write failed: %w", err)
		}
		if n != buf.length {
			return fmt.Errorf("tun write accepted %d of %d bytes", n, buf.length)
		}
		buf.reset()
		return nil
	}

	if err := p.t.Send(buf.buf[:buf.length]); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil
		}
		return fmt.Errorf("transport send failed: %w", err)
	}
	if err := p.t.Flush(); err != nil {
		return fmt.Errorf("transport flush failed: %w", err)
	}
	buf.reset()
	return nil
}

// rearm recomputes poller interest for both fds from current buffer
// state, never from the event that just fired. This is what keeps the
// pump symmetric and deadlock-free: backpressure on one side stops
// reads on the other.
func (p *Pump) rearm() error {
	if err := p.poller.Modify(p.tunSide.fd, p.interestFor(p.tunSide)); err != nil {
		return fmt.Errorf("could not rearm tun fd: %w", err)
	}
	if err := p.poller.Modify(p.transSide.fd, p.interestFor(p.transSide)); err != nil {
		return fmt.Errorf("could not rearm transport fd: %w", err)
	}
	return nil
}

func (p *Pump) interestFor(side *pumpSide) Interest {
	return Interest{
		Readable: side.outbound.empty(),
		Writable: side.inbound.ready(),
	}
}

// Close releases the poller and the transport. The TUN device is
// owned by the caller and outlives the pump.
func (p *Pump) Close() error {
	_ = p.poller.Close()
	return p.t.Close()
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
