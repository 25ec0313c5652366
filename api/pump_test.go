package api

import (
	"errors"
	"io/fs"
	"syscall"
	"testing"
)

func TestPacketBufferLifecycle(t *testing.T) {
	b := newPacketBuffer(16)
	if !b.empty() {
		t.Fatal("new buffer should be empty")
	}
	if b.ready() {
		t.Fatal("new buffer should not be ready")
	}

	b.length = 10
	b.end = 10
	if b.empty() {
		t.Fatal("buffer with length set should not be empty")
	}
	if !b.ready() {
		t.Fatal("buffer with end == length should be ready")
	}

	b.reset()
	if !b.empty() || b.ready() {
		t.Fatal("reset buffer should be empty and not ready")
	}
}

func TestInterestForReflectsBufferState(t *testing.T) {
	outbound := newPacketBuffer(16)
	inbound := newPacketBuffer(16)
	p := &Pump{}
	side := &pumpSide{outbound: outbound, inbound: inbound}

	// Both buffers empty: should read, should not write.
	in := p.interestFor(side)
	if !in.Readable || in.Writable {
		t.Fatalf("unexpected interest for empty buffers: %+v", in)
	}

	// outbound not empty (mid-fill, not ready): should not read.
	outbound.length = 20
	outbound.end = 10
	in = p.interestFor(side)
	if in.Readable {
		t.Fatalf("expected no read interest while outbound is non-empty, got %+v", in)
	}

	// inbound ready to drain: should write.
	inbound.length = 8
	inbound.end = 8
	in = p.interestFor(side)
	if !in.Writable {
		t.Fatalf("expected write interest when inbound is ready, got %+v", in)
	}
}

func TestIsWouldBlockMatchesSyscallErrno(t *testing.T) {
	if !isWouldBlock(syscall.EAGAIN) {
		t.Fatal("expected EAGAIN to be classified as would-block")
	}
	if !isWouldBlock(syscall.EWOULDBLOCK) {
		t.Fatal("expected EWOULDBLOCK to be classified as would-block")
	}

	wrapped := &fs.PathError{Op: "read", Path: "tun0", Err: syscall.EAGAIN}
	if !isWouldBlock(wrapped) {
		t.Fatal("expected a wrapped *fs.PathError carrying EAGAIN to be classified as would-block")
	}

	if isWouldBlock(errors.New("some other failure")) {
		t.Fatal("unrelated error should not be classified as would-block")
	}
}
