//go:build linux

package api

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerWaitReportsReadable(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, b := socketpair(t)
	if err := p.Add(a, Interest{Readable: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	events, err := p.Wait(make([]Event, 4), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 1 || events[0].Fd != a || !events[0].Readable {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestPollerOneShotRequiresRearm(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, b := socketpair(t)
	if err := p.Add(a, Interest{Readable: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	if _, err := p.Wait(make([]Event, 4), time.Second); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	// Interest was consumed by the one-shot notification above; without
	// a Modify call, a second write must not produce another event.
	if _, err := unix.Write(b, []byte("y")); err != nil {
		t.Fatalf("peer write 2: %v", err)
	}
	events, err := p.Wait(make([]Event, 4), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events before rearm, got %+v", events)
	}

	if err := p.Modify(a, Interest{Readable: true}); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	events, err = p.Wait(make([]Event, 4), time.Second)
	if err != nil {
		t.Fatalf("third Wait: %v", err)
	}
	if len(events) != 1 || !events[0].Readable {
		t.Fatalf("expected a readable event after rearm, got %+v", events)
	}
}

func TestPollerWaitTimesOut(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, _ := socketpair(t)
	if err := p.Add(a, Interest{Readable: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	start := time.Now()
	events, err := p.Wait(make([]Event, 4), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("Wait returned too early: %v", elapsed)
	}
}

func TestPollerDelete(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, b := socketpair(t)
	if err := p.Add(a, Interest{Readable: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Delete(a); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	events, err := p.Wait(make([]Event, 4), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after Delete, got %+v", events)
	}
}
