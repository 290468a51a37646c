// Package devchan implements the device channel (C1): ownership of the
// character-device file descriptor, a reader goroutine surfacing
// read/error/closed events, and scatter/gather writes. Read framing is not
// this package's concern — bytes are delivered to the caller as they
// arrive and may contain zero, one, or many QMUX frames.
package devchan

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-qmux/internal/constants"
	"github.com/behrlich/go-qmux/internal/interfaces"
)

// Channel is a character-device-backed interfaces.Channel.
type Channel struct {
	path string
	fd   int

	events chan interfaces.Event

	closeOnce sync.Once
	closed    chan struct{}
}

var _ interfaces.Channel = (*Channel)(nil)

// Open opens path for read/write, retrying while the device node does not
// yet exist (a modem's cdc-wdm node can appear asynchronously after udev
// enumeration). Idempotent re-open after a closed event is supported by
// simply calling Open again with a fresh Channel.
func Open(path string) (*Channel, error) {
	fd, err := openWithRetry(path, 20, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		path:   path,
		fd:     fd,
		events: make(chan interfaces.Event, 32),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func openWithRetry(path string, attempts int, delay time.Duration) (int, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
		if err == nil {
			return fd, nil
		}
		if err != unix.ENOENT {
			return -1, fmt.Errorf("devchan: open %s: %w", path, err)
		}
		lastErr = err
		time.Sleep(delay)
	}
	return -1, fmt.Errorf("devchan: open %s: device did not appear: %w", path, lastErr)
}

// Events returns the channel of read/error/closed notifications.
func (c *Channel) Events() <-chan interfaces.Event {
	return c.events
}

// Write writes one already-framed envelope through WriteChunks.
func (c *Channel) Write(frame []byte) error {
	return c.WriteChunks([][]byte{frame})
}

// WriteChunks writes multiple byte chunks, retrying writev until every byte
// is accepted. The fd is non-blocking, so both EAGAIN and a short count are
// expected outcomes, not failures: each is treated as a pending write and
// completed with further writev calls (waiting on POLLOUT between attempts)
// before WriteChunks returns, rather than surfaced to the caller as an error.
func (c *Channel) WriteChunks(chunks [][]byte) error {
	iovs := make([][]byte, 0, len(chunks))
	want := 0
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		iovs = append(iovs, chunk)
		want += len(chunk)
	}
	if want == 0 {
		return nil
	}

	written := 0
	for written < want {
		n, err := unix.Writev(c.fd, iovs)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if !c.waitWritable() {
				return fmt.Errorf("devchan: writev: channel closed with %d of %d bytes pending", want-written, want)
			}
			continue
		case err != nil:
			return fmt.Errorf("devchan: writev: %w", err)
		}
		written += n
		if written < want {
			iovs = advanceIovs(iovs, n)
		}
	}
	return nil
}

// advanceIovs drops the first n bytes from a chunk list, dropping chunks
// writev already consumed in full and trimming the one it partially wrote.
func advanceIovs(iovs [][]byte, n int) [][]byte {
	for n > 0 && len(iovs) > 0 {
		if n < len(iovs[0]) {
			iovs[0] = iovs[0][n:]
			return iovs
		}
		n -= len(iovs[0])
		iovs = iovs[1:]
	}
	return iovs
}

// Close closes the underlying file descriptor. Safe to call more than
// once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = unix.Close(c.fd)
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.events)

	buf := make([]byte, constants.ReadBufferSize)
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		n, err := unix.Read(c.fd, buf)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if !c.waitReadable() {
				return
			}
			continue
		case err != nil:
			c.emit(interfaces.Event{Kind: interfaces.EventError, Err: err})
			continue
		case n == 0:
			c.emit(interfaces.Event{Kind: interfaces.EventClosed})
			return
		default:
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.emit(interfaces.Event{Kind: interfaces.EventRead, Data: chunk})
		}
	}
}

// waitReadable blocks until the fd is readable or the channel is closed,
// using poll so the read loop does not busy-spin on EAGAIN.
func (c *Channel) waitReadable() bool {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-c.closed:
			return false
		default:
		}
		n, err := unix.Poll(fds, 200)
		if err != nil && err != unix.EINTR {
			c.emit(interfaces.Event{Kind: interfaces.EventError, Err: err})
			return true
		}
		if n > 0 {
			return true
		}
	}
}

// waitWritable blocks until the fd is writable or the channel is closed,
// using poll so a pending write does not busy-spin on EAGAIN.
func (c *Channel) waitWritable() bool {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
	for {
		select {
		case <-c.closed:
			return false
		default:
		}
		n, err := unix.Poll(fds, 200)
		if err != nil && err != unix.EINTR {
			c.emit(interfaces.Event{Kind: interfaces.EventError, Err: err})
			return true
		}
		if n > 0 {
			return true
		}
	}
}

func (c *Channel) emit(ev interfaces.Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}
