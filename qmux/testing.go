package qmux

import (
	"sync"

	"github.com/behrlich/go-qmux/internal/interfaces"
)

// MockChannel is an in-memory interfaces.Channel for reactor tests: writes
// are captured for inspection instead of going to a real device, and
// inbound bytes are injected with Deliver/DeliverError/DeliverClosed.
type MockChannel struct {
	mu      sync.Mutex
	events  chan interfaces.Event
	writes  [][]byte
	closed  bool
	writeFn func(frame []byte) error // optional hook to simulate write failures
}

var _ interfaces.Channel = (*MockChannel)(nil)

// NewMockChannel returns a ready-to-use mock channel.
func NewMockChannel() *MockChannel {
	return &MockChannel{
		events: make(chan interfaces.Event, 64),
	}
}

// FailWritesWith makes every subsequent Write return err.
func (m *MockChannel) FailWritesWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeFn = func([]byte) error { return err }
}

func (m *MockChannel) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeFn != nil {
		return m.writeFn(frame)
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.writes = append(m.writes, cp)
	return nil
}

// Writes returns every frame handed to Write so far, in order.
func (m *MockChannel) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockChannel) Events() <-chan interfaces.Event {
	return m.events
}

// Deliver injects bytes as if read from the device.
func (m *MockChannel) Deliver(data []byte) {
	m.events <- interfaces.Event{Kind: interfaces.EventRead, Data: data}
}

// DeliverError injects an I/O error event.
func (m *MockChannel) DeliverError(err error) {
	m.events <- interfaces.Event{Kind: interfaces.EventError, Err: err}
}

// DeliverClosed injects a closed event.
func (m *MockChannel) DeliverClosed() {
	m.events <- interfaces.Event{Kind: interfaces.EventClosed}
}

func (m *MockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}
