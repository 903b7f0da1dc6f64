// Package broker holds the state a socket shares between the goroutines that
// issue calls and the goroutine that ticks the transport: the correlation id
// counter, the pending calls, the connect waiters and the connection state.
//
// Every method takes the broker lock for the duration of one map or queue
// operation only. Waiter channels have capacity one and are written at most
// once, so waking a waiter never blocks while the lock is held.
package broker

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/rtapi"
)

// Result is what a pending call wakes up with: the reply envelope, or the
// error that tore the call down.
type Result struct {
	Envelope *rtapi.Envelope
	Err      error
}

// Broker correlates replies with the calls waiting for them.
type Broker struct {
	mu      sync.Mutex
	nextCID uint64
	pending map[string]chan Result
	waiters []chan error
	state   rtsock.State
}

// New returns an empty broker in the disconnected state.
func New() *Broker {
	return &Broker{
		pending: make(map[string]chan Result),
		state:   rtsock.StateDisconnected,
	}
}

// NextCID returns the next correlation id. The first id is "1".
func (b *Broker) NextCID() string {
	b.mu.Lock()
	b.nextCID++
	id := b.nextCID
	b.mu.Unlock()
	return strconv.FormatUint(id, 10)
}

// Register records a pending call under cid and returns the channel its
// result will be delivered on.
func (b *Broker) Register(cid string) (<-chan Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pending[cid]; ok {
		return nil, errors.Wrapf(rtsock.ErrDuplicateCID, "cid %s", cid)
	}
	ch := make(chan Result, 1)
	b.pending[cid] = ch
	return ch, nil
}

// Resolve wakes the call pending under cid with env. It reports false when
// no call is pending, which means the reply is late or duplicated.
func (b *Broker) Resolve(cid string, env *rtapi.Envelope) bool {
	b.mu.Lock()
	ch, ok := b.pending[cid]
	if ok {
		delete(b.pending, cid)
		ch <- Result{Envelope: env}
	}
	b.mu.Unlock()
	return ok
}

// Forget drops the call pending under cid without waking it. Callers use it
// when they stop waiting on their own (context done, deadline).
func (b *Broker) Forget(cid string) bool {
	b.mu.Lock()
	_, ok := b.pending[cid]
	delete(b.pending, cid)
	b.mu.Unlock()
	return ok
}

// CancelAll wakes every pending call with err and returns how many there were.
func (b *Broker) CancelAll(err error) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelAllLocked(err)
}

func (b *Broker) cancelAllLocked(err error) int {
	n := len(b.pending)
	for cid, ch := range b.pending {
		ch <- Result{Err: err}
		delete(b.pending, cid)
	}
	return n
}

// Pending returns the number of calls waiting for a reply.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// State returns the connection state.
func (b *Broker) State() rtsock.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BeginConnect queues a connect waiter.
//
// When the socket is already connected it returns a nil waiter. When a
// connect is already in flight the waiter joins it and dial is false. From
// the disconnected or closed state the broker moves to connecting and dial
// is true: the caller must start the transport connect.
func (b *Broker) BeginConnect() (waiter <-chan error, dial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == rtsock.StateConnected {
		return nil, false
	}
	ch := make(chan error, 1)
	b.waiters = append(b.waiters, ch)
	if b.state == rtsock.StateConnecting {
		return ch, false
	}
	b.state = rtsock.StateConnecting
	return ch, true
}

// AbortConnect fails every connect waiter with err and returns to the
// disconnected state. It reports false and changes nothing unless a connect
// is still in progress, so an attempt that already succeeded is kept.
func (b *Broker) AbortConnect(err error) (released int, aborted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != rtsock.StateConnecting {
		return 0, false
	}
	b.state = rtsock.StateDisconnected
	return b.releaseWaitersLocked(err), true
}

// MarkConnected moves to the connected state and releases every connect
// waiter. It returns the number of waiters released. A connected signal
// arriving after Close is ignored.
func (b *Broker) MarkConnected() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == rtsock.StateClosed {
		return 0
	}
	b.state = rtsock.StateConnected
	return b.releaseWaitersLocked(nil)
}

// MarkDisconnected handles a transport close. Pending calls fail with err;
// connect waiters fail with ErrConnectFailed. It returns the number of
// pending calls cancelled. A closed socket stays closed.
func (b *Broker) MarkDisconnected(err error) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseWaitersLocked(errors.Wrap(rtsock.ErrConnectFailed, "transport closed before connecting"))
	if b.state != rtsock.StateClosed {
		b.state = rtsock.StateDisconnected
	}
	return b.cancelAllLocked(err)
}

// Close moves to the closed state, failing every pending call and connect
// waiter with err. It returns the number of pending calls cancelled and
// whether the broker was already closed.
func (b *Broker) Close(err error) (cancelled int, already bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == rtsock.StateClosed {
		return 0, true
	}
	b.state = rtsock.StateClosed
	b.releaseWaitersLocked(err)
	return b.cancelAllLocked(err), false
}

func (b *Broker) releaseWaitersLocked(err error) int {
	n := len(b.waiters)
	for _, ch := range b.waiters {
		ch <- err
	}
	b.waiters = nil
	return n
}
