// Package qmux implements the QMUX transport and transaction multiplexer:
// a single-threaded cooperative reactor that owns a device channel, frames
// and parses QMUX envelopes, allocates and tracks outstanding transactions,
// routes responses to waiters, dispatches indications to a subscriber, and
// recovers from device disconnects.
package qmux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/behrlich/go-qmux/internal/constants"
	"github.com/behrlich/go-qmux/internal/devchan"
	"github.com/behrlich/go-qmux/internal/interfaces"
	"github.com/behrlich/go-qmux/internal/transaction"
	"github.com/behrlich/go-qmux/internal/wire"
)

// ReactorState mirrors the lifecycle a caller can observe from outside the
// reactor's own goroutine.
type ReactorState string

const (
	StateCreated      ReactorState = "created"
	StateConnecting   ReactorState = "connecting"
	StateRunning      ReactorState = "running"
	StateReconnecting ReactorState = "reconnecting"
	StateShutdown     ReactorState = "shutdown"
)

// Options configures a Reactor.
type Options struct {
	// Context for cancellation; if nil, context.Background() is used.
	Context context.Context

	// Logger for diagnostic output; if nil, logging is a no-op.
	Logger interfaces.Logger

	// Observer for metrics; if nil, observations are dropped.
	Observer interfaces.Observer

	// IndicationHandler is the subscriber callback, invoked synchronously
	// from the reactor for every indication. Nil means indications are
	// parsed then discarded.
	IndicationHandler IndicationHandler

	// Indications is the registry of per-service indication decoders. A
	// nil registry means every indication is delivered with Value == nil.
	Indications *IndicationRegistry

	// channelFactory is overridable for tests; production callers leave
	// it nil and get a real devchan.Channel opened against the devicePath
	// passed to New.
	channelFactory func(path string) (interfaces.Channel, error)
}

type callSubmission struct {
	serviceID uint8
	clientID  uint8
	request   Request
	timeout   time.Duration
	result    chan transaction.Result
}

// waiterChan adapts a channel into the transaction.Waiter interface.
type waiterChan chan transaction.Result

func (w waiterChan) Deliver(result transaction.Result) {
	w <- result
}

// Reactor is the single-threaded owner of a device channel and its
// transaction table. Exactly one goroutine — run, started
// by New — ever touches the table, the counters, or the channel.
type Reactor struct {
	name       string
	devicePath string

	logger   interfaces.Logger
	observer interfaces.Observer
	handler  IndicationHandler
	indReg   *IndicationRegistry

	channelFactory func(path string) (interfaces.Channel, error)

	submissions chan callSubmission

	metrics *Metrics

	mu    sync.RWMutex
	state ReactorState

	ctx    context.Context
	cancel context.CancelFunc

	doneCh chan struct{}
}

// New creates a Reactor for the device at devicePath and starts its
// goroutine. The device is opened asynchronously; a call submitted before
// the open completes (State is not yet StateRunning) fails at once with
// ErrWriteError ("device not connected").
func New(name, devicePath string, opts *Options) *Reactor {
	if opts == nil {
		opts = &Options{}
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}

	factory := opts.channelFactory
	if factory == nil {
		factory = func(path string) (interfaces.Channel, error) {
			return devchan.Open(path)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	r := &Reactor{
		name:           name,
		devicePath:     devicePath,
		logger:         logger,
		observer:       observer,
		handler:        opts.IndicationHandler,
		indReg:         opts.Indications,
		channelFactory: factory,
		submissions:    make(chan callSubmission),
		metrics:        NewMetrics(),
		state:          StateCreated,
		ctx:            runCtx,
		cancel:         cancel,
		doneCh:         make(chan struct{}),
	}

	go r.run()
	return r
}

// State reports the reactor's current lifecycle state.
func (r *Reactor) State() ReactorState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reactor) setState(s ReactorState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Metrics returns the reactor's own Metrics instance. The reactor records
// only its stop time there, on shutdown; call, response, timeout,
// indication and byte observations go to Options.Observer instead.
func (r *Reactor) Metrics() *Metrics {
	return r.metrics
}

// Call submits req to the service Request.ServiceID names (0 is the Control
// service), with clientID in the outbound header, and blocks until a
// response, failure, or timeout.
func (r *Reactor) Call(ctx context.Context, clientID uint8, req Request, opts CallOptions) (any, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultCallTimeout
	}

	sub := callSubmission{
		serviceID: req.ServiceID,
		clientID:  clientID,
		request:   req,
		timeout:   timeout,
		result:    make(chan transaction.Result, 1),
	}

	select {
	case r.submissions <- sub:
	case <-r.doneCh:
		return nil, newError("Call", req.ServiceID, clientID, 0, ErrShutdown, "reactor is shut down")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The outer wait is twice the inner timeout so the reactor's own
	// expire path always wins the race.
	outerWait := time.NewTimer(timeout * time.Duration(constants.OuterWaitMultiplier))
	defer outerWait.Stop()

	select {
	case result := <-sub.result:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-outerWait.C:
		return nil, newError("Call", req.ServiceID, clientID, 0, ErrTimeout, "reactor did not respond within outer wait")
	}
}

// Shutdown cancels all timers, fails every pending waiter with
// ErrShutdown, and closes the device channel. It blocks until the
// reactor's goroutine has exited.
func (r *Reactor) Shutdown() {
	r.cancel()
	<-r.doneCh
}

type reactorLoop struct {
	r           *Reactor
	channel     interfaces.Channel
	framer      *wire.Framer
	table       *transaction.Table
	reopenResCh chan interfaces.Channel
	reopening   bool
}

// run is the reactor's single goroutine: call submissions, channel events,
// timer expirations, and shutdown are all handled here via one select loop.
func (r *Reactor) run() {
	defer close(r.doneCh)
	defer r.setState(StateShutdown)

	loop := &reactorLoop{
		r:           r,
		table:       transaction.NewTable(),
		framer:      wire.NewFramer(),
		reopenResCh: make(chan interfaces.Channel, 1),
	}

	r.setState(StateConnecting)
	loop.scheduleReopen()

	expirations := make(chan uint16, 16)

	for {
		var events <-chan interfaces.Event
		if loop.channel != nil {
			events = loop.channel.Events()
		}

		select {
		case <-r.ctx.Done():
			loop.shutdown()
			return

		case sub := <-r.submissions:
			loop.handleSubmission(sub, expirations)

		case ev, ok := <-events:
			if !ok {
				// Channel's event stream closed without an explicit
				// EventClosed; treat the same way.
				loop.handleClosed()
				continue
			}
			loop.handleEvent(ev)

		case id := <-expirations:
			loop.handleExpire(id)

		case channel := <-loop.reopenResCh:
			loop.channel = channel
			loop.framer = wire.NewFramer()
			loop.reopening = false
			r.setState(StateRunning)
			r.logger.Printf("qmux[%s]: reconnected to %s", r.name, r.devicePath)
		}

		r.observer.ObserveTransactionTableDepth(uint32(loop.table.Len()))
	}
}

// scheduleReopen runs the (blocking, retrying) channel open on its own
// goroutine so the reactor's loop keeps servicing submissions and timer
// expirations while the device node is missing. devchan.Open already
// retries internally; this layer retries that attempt indefinitely at
// constants.ReopenRetryInterval so a device unplugged for longer than
// devchan's own retry budget still reconnects once it reappears.
func (l *reactorLoop) scheduleReopen() {
	if l.reopening {
		return
	}
	l.reopening = true
	go func() {
		for {
			channel, err := l.r.channelFactory(l.r.devicePath)
			if err == nil {
				select {
				case l.reopenResCh <- channel:
				case <-l.r.doneCh:
					channel.Close()
				}
				return
			}
			l.r.logger.Printf("qmux[%s]: open %s failed: %v", l.r.name, l.r.devicePath, err)
			select {
			case <-time.After(constants.ReopenRetryInterval):
			case <-l.r.doneCh:
				return
			}
		}
	}()
}

func (l *reactorLoop) handleSubmission(sub callSubmission, expirations chan<- uint16) {
	class := transaction.ClassOf(sub.serviceID)
	id := l.table.Allocate(class)

	timer := time.AfterFunc(sub.timeout, func() {
		select {
		case expirations <- id:
		case <-l.r.doneCh:
		}
	})

	l.table.Install(&transaction.Entry{
		ID:        id,
		Class:     class,
		ServiceID: sub.serviceID,
		Waiter:    waiterChan(sub.result),
		Request: transaction.Request{
			Decode: sub.request.Decode,
		},
		Timer:       timer,
		SubmittedAt: time.Now(),
	})

	// latencyNs is 0 here: the call has just been submitted, not completed.
	l.r.observer.ObserveCall(sub.serviceID, 0, true)

	frame, err := wire.Encode(sub.serviceID, sub.clientID, id, sub.request.Payload)
	if err != nil {
		l.failWrite(id, sub.serviceID, sub.clientID, err)
		return
	}

	if l.channel == nil {
		l.failWrite(id, sub.serviceID, sub.clientID, fmt.Errorf("device not connected"))
		return
	}

	if err := l.channel.Write(frame); err != nil {
		l.failWrite(id, sub.serviceID, sub.clientID, err)
		return
	}
	l.r.observer.ObserveBytesOut(uint64(len(frame)))
}

// failWrite rolls back a transaction-table entry whose outbound write
// failed, delivering a structured write_error to the waiter rather than
// taking down the reactor.
func (l *reactorLoop) failWrite(id uint16, serviceID, clientID uint8, cause error) {
	qerr := newError("write", serviceID, clientID, id, ErrWriteError, cause.Error())
	qerr.Inner = cause
	l.table.Fail(id, qerr)
	l.r.observer.ObserveWriteError(serviceID)
}

func (l *reactorLoop) handleEvent(ev interfaces.Event) {
	switch ev.Kind {
	case interfaces.EventRead:
		l.r.observer.ObserveBytesIn(uint64(len(ev.Data)))
		l.framer.Append(ev.Data)
		for {
			env, ok, err := l.framer.Next()
			if err != nil {
				l.r.logger.Printf("qmux[%s]: dropping malformed frame: %v", l.r.name, err)
				continue
			}
			if !ok {
				break
			}
			l.route(env)
		}
	case interfaces.EventError:
		l.r.logger.Printf("qmux[%s]: device I/O error: %v", l.r.name, ev.Err)
	case interfaces.EventClosed:
		l.handleClosed()
	}
}

func (l *reactorLoop) handleClosed() {
	l.r.logger.Printf("qmux[%s]: device closed, reconnecting", l.r.name)
	l.r.setState(StateReconnecting)
	l.channel = nil
	// Pending entries are left untouched; their timers keep running and
	// fire normally against the now-disconnected device (see DESIGN.md's
	// open-question entry on reconnect semantics).
	l.scheduleReopen()
}

func (l *reactorLoop) route(env wire.Envelope) {
	if env.Indication {
		l.routeIndication(env)
		return
	}

	if env.HasResult && env.QMIResult != 0 {
		latencyNs := l.latencySince(env.TransactionID)
		qerr := newQMIError("Call", env.ServiceID, env.ClientID, env.TransactionID, FromUint16(env.QMIError))
		if !l.table.Fail(env.TransactionID, qerr) {
			l.r.logger.Printf("qmux[%s]: failure response for unknown transaction %d", l.r.name, env.TransactionID)
		}
		l.r.observer.ObserveResponse(env.ServiceID, latencyNs, env.QMIError)
		return
	}

	entry := l.table.Lookup(env.TransactionID)
	if entry == nil {
		l.r.logger.Printf("qmux[%s]: response for unknown transaction %d", l.r.name, env.TransactionID)
		return
	}
	latencyNs := uint64(time.Since(entry.SubmittedAt).Nanoseconds())

	var value any
	var err error
	if entry.Request.Decode != nil {
		value, err = entry.Request.Decode(env.Message)
	} else {
		value = env.Message
	}

	l.table.Pop(env.TransactionID)
	if entry.Timer != nil {
		entry.Timer.Stop()
	}

	if err != nil {
		entry.Waiter.Deliver(transaction.Result{Err: wrapError("decode", env.ServiceID, err)})
	} else {
		entry.Waiter.Deliver(transaction.Result{Value: value})
	}
	l.r.observer.ObserveResponse(env.ServiceID, latencyNs, 0)
}

// latencySince returns the elapsed time since id's submission, or 0 if id
// is not (or no longer) in the table.
func (l *reactorLoop) latencySince(id uint16) uint64 {
	entry := l.table.Lookup(id)
	if entry == nil {
		return 0
	}
	return uint64(time.Since(entry.SubmittedAt).Nanoseconds())
}

func (l *reactorLoop) routeIndication(env wire.Envelope) {
	ind := Indication{ServiceID: env.ServiceID, ClientID: env.ClientID, MessageID: env.MessageID}

	if l.r.indReg != nil {
		value, found, err := l.r.indReg.decode(env.ServiceID, env.MessageID, env.Message)
		if err != nil {
			l.r.logger.Printf("qmux[%s]: dropping indication with decode error: %v", l.r.name, err)
			return
		}
		if !found {
			l.r.logger.Printf("qmux[%s]: dropping unrecognized indication service=%d message=0x%04x", l.r.name, env.ServiceID, env.MessageID)
			return
		}
		ind.Value = value
	}

	l.r.observer.ObserveIndication(env.ServiceID)
	if l.r.handler != nil {
		l.r.handler(ind)
	}
}

func (l *reactorLoop) handleExpire(id uint16) {
	entry := l.table.Lookup(id)
	var serviceID uint8
	if entry != nil {
		serviceID = entry.ServiceID
	}
	l.table.Expire(id, newError("Call", serviceID, 0, id, ErrTimeout, "call timed out"))
	l.r.observer.ObserveTimeout(serviceID)
}

func (l *reactorLoop) shutdown() {
	l.table.Drain(newError("Shutdown", 0, 0, 0, ErrShutdown, "reactor shutting down"))
	if l.channel != nil {
		if err := l.channel.Close(); err != nil {
			l.r.logger.Printf("qmux[%s]: error closing channel on shutdown: %v", l.r.name, err)
		}
	}
	l.r.metrics.Stop()
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...interface{}) {}
func (noopLogger) Debugf(string, ...interface{}) {}
