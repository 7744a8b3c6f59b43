//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// poller wraps an epoll instance plus the eventfd used to interrupt it.
type poller struct {
	eventBuf [256]unix.EpollEvent
	epfd     int
	wakeFd   int
}

func (p *poller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return err
	}

	// the eventfd is level triggered, and drained on every wakeup
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return err
	}

	p.epfd = epfd
	p.wakeFd = wakeFd
	return nil
}

func (p *poller) close() error {
	return errors.Join(unix.Close(p.wakeFd), unix.Close(p.epfd))
}

func (p *poller) add(fd int, interest IOEvents) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(interest),
		Fd:     int32(fd),
	})
}

func (p *poller) modify(fd int, interest IOEvents) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(interest),
		Fd:     int32(fd),
	})
}

func (p *poller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks for up to timeoutMs (negative is indefinite), returning the
// number of entries in eventBuf. EINTR is reported as zero events.
func (p *poller) wait(timeoutMs int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// event returns the fd and readiness of the i-th entry from the last wait,
// with isWake set if it was the wakeup eventfd.
func (p *poller) event(i int) (fd int, events IOEvents, isWake bool) {
	ev := &p.eventBuf[i]
	fd = int(ev.Fd)
	if fd == p.wakeFd {
		return fd, 0, true
	}
	return fd, epollToEvents(ev.Events), false
}

func (p *poller) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakeFd, buf[:])
	if err == unix.EAGAIN {
		// counter saturated, a wakeup is already pending
		return nil
	}
	return err
}

func (p *poller) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFd, buf[:]); err != nil {
			break
		}
	}
}

// eventsToEpoll converts IOEvents to edge-triggered epoll event flags.
func eventsToEpoll(events IOEvents) uint32 {
	epollEvents := uint32(unix.EPOLLET | unix.EPOLLRDHUP)
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
