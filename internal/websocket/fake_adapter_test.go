package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/protocol"
	"github.com/luciancaetano/rtsock/rtapi"
)

// fakeAdapter is a scripted in-memory transport. Events the test queues are
// delivered on the next Tick, like the gorilla adapter does.
type fakeAdapter struct {
	mu          sync.Mutex
	connected   bool
	connecting  bool
	failConnect bool
	dials       int
	lastAddr    string
	queue       []func()
	sent        chan []byte

	onConnected func()
	onClosed    func()
	onReceived  func([]byte, error)

	// onDial runs at the end of Connect, outside the lock.
	onDial func()
}

var _ rtsock.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{sent: make(chan []byte, 256)}
}

func (f *fakeAdapter) Connect(addr string, timeout time.Duration) error {
	f.mu.Lock()
	f.dials++
	f.lastAddr = addr
	f.connecting = true
	if f.failConnect {
		f.queue = append(f.queue, func() {
			f.mu.Lock()
			f.connecting = false
			f.mu.Unlock()
			f.callbacks().closed()
		})
	} else {
		f.queue = append(f.queue, func() {
			f.mu.Lock()
			f.connecting = false
			f.connected = true
			f.mu.Unlock()
			f.callbacks().connected()
		})
	}
	onDial := f.onDial
	f.mu.Unlock()

	if onDial != nil {
		onDial()
	}
	return nil
}

func (f *fakeAdapter) Send(data []byte, reliable bool) error {
	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()
	if !connected {
		return errors.WithStack(rtsock.ErrNotConnected)
	}
	f.sent <- data
	return nil
}

func (f *fakeAdapter) Close() error {
	f.serverClose()
	return nil
}

// serverClose queues a transport close as if the server hung up.
func (f *fakeAdapter) serverClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, func() {
		f.mu.Lock()
		f.connected = false
		f.connecting = false
		f.mu.Unlock()
		f.callbacks().closed()
	})
}

// receive queues an inbound frame.
func (f *fakeAdapter) receive(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, func() { f.callbacks().received(frame, nil) })
}

// fail queues an inbound transport error.
func (f *fakeAdapter) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, func() { f.callbacks().received(nil, err) })
}

func (f *fakeAdapter) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAdapter) IsConnecting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connecting
}

func (f *fakeAdapter) Tick() {
	f.mu.Lock()
	queue := f.queue
	f.queue = nil
	f.mu.Unlock()
	for _, ev := range queue {
		ev()
	}
}

func (f *fakeAdapter) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

type fakeCallbacks struct {
	connected func()
	closed    func()
	received  func([]byte, error)
}

func (f *fakeAdapter) callbacks() fakeCallbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	cb := fakeCallbacks{connected: f.onConnected, closed: f.onClosed, received: f.onReceived}
	if cb.connected == nil {
		cb.connected = func() {}
	}
	if cb.closed == nil {
		cb.closed = func() {}
	}
	if cb.received == nil {
		cb.received = func([]byte, error) {}
	}
	return cb
}

func (f *fakeAdapter) OnConnected(fn func()) {
	f.mu.Lock()
	f.onConnected = fn
	f.mu.Unlock()
}

func (f *fakeAdapter) OnClosed(fn func()) {
	f.mu.Lock()
	f.onClosed = fn
	f.mu.Unlock()
}

func (f *fakeAdapter) OnReceived(fn func([]byte, error)) {
	f.mu.Lock()
	f.onReceived = fn
	f.mu.Unlock()
}

// nextSent returns the next envelope the socket handed to the transport.
func (f *fakeAdapter) nextSent(t *testing.T) *rtapi.Envelope {
	t.Helper()
	select {
	case data := <-f.sent:
		env, err := protocol.Decode(data)
		require.NoError(t, err)
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outbound frame")
		return nil
	}
}

// reply queues env as an inbound frame.
func (f *fakeAdapter) reply(t *testing.T, env *rtapi.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	f.receive(data)
}

type outcome[T any] struct {
	val T
	err error
}

// async runs fn in a goroutine and returns its outcome on a channel.
func async[T any](fn func() (T, error)) <-chan outcome[T] {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{val: v, err: err}
	}()
	return ch
}

func await[T any](t *testing.T, ch <-chan outcome[T]) outcome[T] {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the call to return")
		return outcome[T]{}
	}
}

func newTestSocket(t *testing.T, cfg *Config) (*Socket, *fakeAdapter) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = NoRateLimit()
	}
	fa := newFakeAdapter()
	return NewSocket(fa, cfg), fa
}

// connectSocket ticks s until Connect returns.
func connectSocket(t *testing.T, s *Socket) {
	t.Helper()
	done := async(func() (struct{}, error) {
		return struct{}{}, s.Connect(t.Context(), rtsock.NewSession("token", ""), true)
	})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case o := <-done:
			require.NoError(t, o.err)
			return
		case <-deadline:
			t.Fatal("timed out connecting")
		default:
			s.Tick()
			time.Sleep(time.Millisecond)
		}
	}
}
