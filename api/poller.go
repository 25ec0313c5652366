package api

import (
	"time"

	"golang.org/x/sys/unix"
)

// readFlags are the epoll bits that represent "readable", folding in
// hang-up and error so a dead peer surfaces as a read that then
// returns EOF/error rather than as a silent stall.
const readFlags = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLPRI

// writeFlags are the epoll bits that represent "writable".
const writeFlags = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR

// Interest describes which directions a file descriptor should be
// watched for.
type Interest struct {
	Readable bool
	Writable bool
}

// Event reports that a file descriptor became ready.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
}

// Poller is a thin wrapper over a level-triggered, one-shot readiness
// notifier (Linux epoll). After a readiness notification a
// descriptor's interest is cleared and must be rearmed with Modify.
type Poller struct {
	epfd int
}

// New creates a poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: fd}, nil
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, in Interest) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, &in)
}

// Modify rearms fd with a new interest set.
func (p *Poller) Modify(fd int, in Interest) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, &in)
}

// Delete removes fd from the poller.
func (p *Poller) Delete(fd int) error {
	return p.ctl(unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *Poller) ctl(op int, fd int, in *Interest) error {
	var ev unix.EpollEvent
	if in != nil {
		var flags uint32 = unix.EPOLLONESHOT
		if in.Readable {
			flags |= readFlags
		}
		if in.Writable {
			flags |= writeFlags
		}
		ev.Events = flags
		ev.Fd = int32(fd)
	}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

// Wait blocks until at least one registered descriptor becomes ready,
// or until timeout elapses. A negative timeout blocks indefinitely; a
// zero timeout returns immediately.
func (p *Poller) Wait(buf []Event, timeout time.Duration) ([]Event, error) {
	raw := make([]unix.EpollEvent, len(buf))

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if timeout%time.Millisecond != 0 {
			ms++
		}
	}

	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return buf[:0], nil
		}
		return nil, err
	}

	out := buf[:0]
	for _, ev := range raw[:n] {
		out = append(out, Event{
			Fd:       int(ev.Fd),
			Readable: ev.Events&readFlags != 0,
			Writable: ev.Events&writeFlags != 0,
		})
	}
	return out, nil
}

// Close releases the underlying epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
