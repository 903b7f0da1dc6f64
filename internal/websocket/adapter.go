package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luciancaetano/rtsock"
)

const (
	maxQueuedFrames = 1024
	sendBufferSize  = 256
	writeWait       = 10 * time.Second
	pingPeriod      = 54 * time.Second
	closeGrace      = time.Second
)

type eventKind int

const (
	eventConnected eventKind = iota
	eventClosed
	eventFrame
	eventError
)

// event is one transport notification waiting for the next Tick. gen ties it
// to the connection attempt that produced it so a late event from a previous
// connection is never delivered to a new one.
type event struct {
	kind eventKind
	gen  uint64
	data []byte
	err  error
}

// Adapter implements rtsock.Adapter on a gorilla WebSocket connection.
//
// A read pump and a write pump run per connection. Inbound frames and
// lifecycle changes are queued and handed to the registered callbacks only
// from Tick.
type Adapter struct {
	dialer *websocket.Dialer
	logger *zap.Logger

	// Lifecycle events are always queued. Frames wait for a Tick once
	// maxFrames of them are queued, which pushes back on the read pump.
	qMu       sync.Mutex
	queue     []event
	frames    int
	maxFrames int
	drained   chan struct{}

	mu         sync.RWMutex
	conn       *websocket.Conn
	sendCh     chan []byte
	cancel     context.CancelFunc
	gen        uint64
	closedGen  uint64
	connecting bool
	connected  bool

	cbMu        sync.RWMutex
	onConnected func()
	onClosed    func()
	onReceived  func(frame []byte, err error)
}

var _ rtsock.Adapter = (*Adapter)(nil)

// NewAdapter creates a gorilla WebSocket adapter.
func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		dialer: &websocket.Dialer{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:    logger,
		maxFrames: maxQueuedFrames,
		drained:   make(chan struct{}),
	}
}

// Connect starts dialing addr in the background.
func (a *Adapter) Connect(addr string, timeout time.Duration) error {
	a.mu.Lock()
	if a.connecting || a.connected {
		a.mu.Unlock()
		return errors.New("adapter already connected or connecting")
	}
	a.gen++
	gen := a.gen
	a.connecting = true
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	go a.dial(ctx, gen, addr, timeout)
	return nil
}

func (a *Adapter) dial(ctx context.Context, gen uint64, addr string, timeout time.Duration) {
	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, resp, err := a.dialer.DialContext(dialCtx, addr, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		a.mu.Lock()
		if a.gen == gen {
			a.connecting = false
		}
		a.mu.Unlock()
		a.push(event{kind: eventError, gen: gen, err: errors.Wrap(err, "dial")})
		a.emitClosed(gen)
		return
	}

	a.mu.Lock()
	if a.gen != gen || ctx.Err() != nil {
		a.mu.Unlock()
		conn.Close()
		return
	}
	sendCh := make(chan []byte, sendBufferSize)
	a.conn = conn
	a.sendCh = sendCh
	a.connecting = false
	a.connected = true
	a.mu.Unlock()

	a.push(event{kind: eventConnected, gen: gen})

	go a.writePump(ctx, gen, conn, sendCh)
	go a.readPump(ctx, gen, conn)
}

// readPump queues every inbound data frame until the connection fails.
func (a *Adapter) readPump(ctx context.Context, gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.push(event{kind: eventError, gen: gen, err: errors.Wrap(err, "read")})
			}
			a.teardown(gen)
			return
		}
		if !a.pushFrame(ctx, event{kind: eventFrame, gen: gen, data: data}) {
			return
		}
	}
}

// writePump pumps messages from the send channel to the websocket connection
func (a *Adapter) writePump(ctx context.Context, gen uint64, conn *websocket.Conn, sendCh <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-sendCh:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if ctx.Err() == nil {
					a.push(event{kind: eventError, gen: gen, err: errors.Wrap(err, "write")})
				}
				a.teardown(gen)
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.teardown(gen)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// teardown drops the connection of generation gen after a pump failure.
func (a *Adapter) teardown(gen uint64) {
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	conn := a.conn
	if a.cancel != nil {
		a.cancel()
	}
	a.conn = nil
	a.sendCh = nil
	a.connected = false
	a.connecting = false
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	a.emitClosed(gen)
}

// emitClosed queues the closed event once per generation.
func (a *Adapter) emitClosed(gen uint64) {
	a.mu.Lock()
	if a.closedGen >= gen {
		a.mu.Unlock()
		return
	}
	a.closedGen = gen
	a.mu.Unlock()
	a.push(event{kind: eventClosed, gen: gen})
}

// push queues a lifecycle event. It never blocks.
func (a *Adapter) push(ev event) {
	a.qMu.Lock()
	a.queue = append(a.queue, ev)
	a.qMu.Unlock()
}

// pushFrame queues an inbound frame, waiting for a Tick while the frame
// limit is reached. It returns false if ctx ends first.
func (a *Adapter) pushFrame(ctx context.Context, ev event) bool {
	for {
		a.qMu.Lock()
		if a.frames < a.maxFrames {
			a.queue = append(a.queue, ev)
			a.frames++
			a.qMu.Unlock()
			return true
		}
		drained := a.drained
		a.qMu.Unlock()

		select {
		case <-drained:
		case <-ctx.Done():
			return false
		}
	}
}

// Send queues data for the write pump.
func (a *Adapter) Send(data []byte, reliable bool) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.connected {
		return errors.WithStack(rtsock.ErrNotConnected)
	}
	select {
	case a.sendCh <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close sends a normal closure and closes the connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if !a.connected && !a.connecting {
		a.mu.Unlock()
		return nil
	}
	gen := a.gen
	conn := a.conn
	if a.cancel != nil {
		a.cancel()
	}
	a.conn = nil
	a.sendCh = nil
	a.connected = false
	a.connecting = false
	a.mu.Unlock()

	var err error
	if conn != nil {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGrace))
		err = conn.Close()
	}
	a.emitClosed(gen)
	return err
}

func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *Adapter) IsConnecting() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connecting
}

// Tick delivers queued events to the callbacks. Events from a previous
// connection are discarded.
func (a *Adapter) Tick() {
	a.qMu.Lock()
	queue := a.queue
	a.queue = nil
	if a.frames > 0 {
		a.frames = 0
		close(a.drained)
		a.drained = make(chan struct{})
	}
	a.qMu.Unlock()

	for _, ev := range queue {
		a.deliver(ev)
	}
}

// queued returns the number of events waiting for Tick.
func (a *Adapter) queued() int {
	a.qMu.Lock()
	defer a.qMu.Unlock()
	return len(a.queue)
}

func (a *Adapter) deliver(ev event) {
	a.mu.RLock()
	current := a.gen
	a.mu.RUnlock()
	if ev.gen != current {
		a.logger.Debug("dropping stale transport event", zap.Uint64("gen", ev.gen), zap.Uint64("current", current))
		return
	}

	a.cbMu.RLock()
	onConnected, onClosed, onReceived := a.onConnected, a.onClosed, a.onReceived
	a.cbMu.RUnlock()

	switch ev.kind {
	case eventConnected:
		if onConnected != nil {
			onConnected()
		}
	case eventClosed:
		if onClosed != nil {
			onClosed()
		}
	case eventFrame:
		if onReceived != nil {
			onReceived(ev.data, nil)
		}
	case eventError:
		if onReceived != nil {
			onReceived(nil, ev.err)
		}
	}
}

func (a *Adapter) OnConnected(fn func()) {
	a.cbMu.Lock()
	a.onConnected = fn
	a.cbMu.Unlock()
}

func (a *Adapter) OnClosed(fn func()) {
	a.cbMu.Lock()
	a.onClosed = fn
	a.cbMu.Unlock()
}

func (a *Adapter) OnReceived(fn func(frame []byte, err error)) {
	a.cbMu.Lock()
	a.onReceived = fn
	a.cbMu.Unlock()
}
