package api

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// peerInfoLen is the 4-byte big-endian IPv4 address. checksumLen adds
// a trailing 2-byte sum of those 4 bytes; the wire length without it
// is left absent in the original source (an acknowledged TODO), but
// this implementation enables it, so both sides of a tunnel built from
// this code must agree (they do, since both ends run this code).
const (
	peerInfoLen = 4
	checksumLen = 2
	wireLen     = peerInfoLen + checksumLen
)

func checksum(addr [peerInfoLen]byte) uint16 {
	var sum uint16
	for _, b := range addr {
		sum += uint16(b)
	}
	return sum
}

// ExchangeHandshake writes the local IPv4 address and reads the
// peer's, returning the peer's address. It runs synchronously on the
// freshly built transport before the pump registers it with a
// poller, using the same message-oriented Send/Receive contract the
// pump itself uses, so no separate wire layer is needed: the
// handshake is simply the first message exchanged.
func ExchangeHandshake(t Transport, local net.IP) (net.IP, error) {
	local4 := local.To4()
	if local4 == nil {
		return nil, fmt.Errorf("local handshake address %s is not a valid IPv4 address", local)
	}

	var out [wireLen]byte
	copy(out[:peerInfoLen], local4)
	binary.BigEndian.PutUint16(out[peerInfoLen:], checksum([4]byte(out[:peerInfoLen])))

	if err := t.Send(out[:]); err != nil {
		return nil, fmt.Errorf("could not send handshake address: %w", err)
	}
	if err := t.Flush(); err != nil {
		return nil, fmt.Errorf("could not flush handshake address: %w", err)
	}

	in, err := receiveBlocking(t)
	if err != nil {
		return nil, fmt.Errorf("could not read peer handshake address: %w", err)
	}
	if len(in) != wireLen {
		return nil, fmt.Errorf("handshake message had %d bytes, want %d", len(in), wireLen)
	}

	want := checksum([4]byte(in[:peerInfoLen]))
	got := binary.BigEndian.Uint16(in[peerInfoLen:])
	if want != got {
		return nil, fmt.Errorf("handshake checksum mismatch: got %d, want %d", got, want)
	}

	peer := net.IPv4(in[0], in[1], in[2], in[3])
	return peer, nil
}

// receiveBlocking polls Receive until a message arrives or a real
// error occurs. No poller is registered yet at this point in startup,
// so this short busy-wait (rather than epoll) is the simplest correct
// way to wait out the reader goroutine's delivery.
func receiveBlocking(t Transport) ([]byte, error) {
	buf := make([]byte, wireLen)
	for {
		n, err := t.Receive(buf)
		if err == nil {
			return buf[:n], nil
		}
		if errors.Is(err, ErrWouldBlock) {
			time.Sleep(time.Millisecond)
			continue
		}
		return nil, err
	}
}
