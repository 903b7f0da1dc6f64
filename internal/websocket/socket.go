package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/broker"
	"github.com/luciancaetano/rtsock/internal/metrics"
	"github.com/luciancaetano/rtsock/internal/protocol"
	"github.com/luciancaetano/rtsock/rtapi"
)

const tracerName = "rtsock"

// hook identifies a lifecycle callback slot.
type hook uint8

const (
	hookConnected hook = iota
	hookClosed
)

// Socket implements rtsock.Socket over an rtsock.Adapter.
type Socket struct {
	id      string
	cfg     *Config
	adapter rtsock.Adapter
	broker  *broker.Broker
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	handlers sync.Map // map[rtapi.Kind]func(*rtapi.Envelope)
	hooks    sync.Map // map[hook]func()
}

var _ rtsock.Socket = (*Socket)(nil)

// NewSocket creates a socket on adapter and registers its callbacks. The
// adapter must not be shared with another socket.
func NewSocket(adapter rtsock.Adapter, cfg *Config) *Socket {
	cfg = cfg.withDefaults()
	id := uuid.New().String()

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	s := &Socket{
		id:      id,
		cfg:     cfg,
		adapter: adapter,
		broker:  broker.New(),
		limiter: cfg.RateLimit.NewLimiter(),
		logger:  cfg.Logger.With(zap.String("socket_id", id)),
		metrics: cfg.Metrics,
		tracer:  tracer,
	}

	adapter.OnConnected(s.handleConnected)
	adapter.OnClosed(s.handleClosed)
	adapter.OnReceived(s.dispatch)
	return s
}

// ID returns a unique identifier for the socket
func (s *Socket) ID() string {
	return s.id
}

// State returns the lifecycle state
func (s *Socket) State() rtsock.State {
	return s.broker.State()
}

// Pending returns the number of calls waiting for a reply
func (s *Socket) Pending() int {
	return s.broker.Pending()
}

// Connect dials the server and waits for the connected signal.
//
// The caller that starts the dial owns the attempt: if its context ends
// first, the attempt is abandoned and every other waiter fails too. Callers
// that joined an attempt in flight only stop waiting.
func (s *Socket) Connect(ctx context.Context, session *rtsock.Session, appearOnline bool) error {
	if session == nil {
		return errors.New("connect: nil session")
	}

	waiter, dial := s.broker.BeginConnect()
	if waiter == nil {
		return nil
	}

	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	if dial {
		addr := s.cfg.Address(session, appearOnline)
		s.logger.Info("connecting", zap.String("host", s.cfg.Host), zap.Int("port", s.cfg.Port), zap.Bool("appear_online", appearOnline))
		if err := s.adapter.Connect(addr, s.cfg.ConnectTimeout); err != nil {
			err = errors.Wrap(err, "connect")
			s.broker.AbortConnect(err)
			return err
		}
	}

	select {
	case err := <-waiter:
		return err
	case <-ctx.Done():
		err := errors.Wrap(ctx.Err(), "connect")
		if !dial {
			return err
		}
		if _, aborted := s.broker.AbortConnect(err); !aborted {
			// The connection was reported while ctx expired and the other
			// waiters were already told it succeeded.
			return <-waiter
		}
		if cerr := s.adapter.Close(); cerr != nil {
			s.logger.Warn("closing abandoned connect", zap.Error(cerr))
		}
		return err
	}
}

// Close closes the connection and fails every pending call with
// rtsock.ErrClosed. Closing a closed socket is a no-op. The transport bounds
// its own close handshake, so the context is not consulted.
func (s *Socket) Close(_ context.Context) error {
	cancelled, already := s.broker.Close(rtsock.ErrClosed)
	if already {
		return nil
	}
	s.metrics.SetPending(0)
	s.logger.Info("closing", zap.Int("cancelled_calls", cancelled))

	if err := s.adapter.Close(); err != nil {
		return errors.Wrap(err, "close transport")
	}
	return nil
}

// Tick pumps buffered transport events into the dispatcher.
func (s *Socket) Tick() {
	s.adapter.Tick()
}

// Run ticks the socket every interval until ctx is done.
func (s *Socket) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.cfg.TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Socket) handleConnected() {
	released := s.broker.MarkConnected()
	s.logger.Info("connected", zap.Int("waiters", released))
	s.runHook(hookConnected)
}

func (s *Socket) handleClosed() {
	cancelled := s.broker.MarkDisconnected(rtsock.ErrDisconnected)
	s.metrics.SetPending(s.broker.Pending())
	s.logger.Info("transport closed", zap.Int("cancelled_calls", cancelled))
	s.runHook(hookClosed)
}

func (s *Socket) runHook(h hook) {
	fn, ok := s.hooks.Load(h)
	if !ok {
		return
	}
	defer s.recoverCallback(hookName(h))
	fn.(func())()
}

func hookName(h hook) string {
	if h == hookConnected {
		return "connected"
	}
	return "closed"
}

// transmit encodes env and hands it to the transport, waiting on the rate
// limiter first.
func (s *Socket) transmit(ctx context.Context, env *rtapi.Envelope) error {
	if s.broker.State() != rtsock.StateConnected {
		return errors.WithStack(rtsock.ErrNotConnected)
	}
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit")
		}
	}
	if err := s.adapter.Send(data, true); err != nil {
		return errors.Wrap(err, "send")
	}
	s.metrics.FrameSent()
	if ce := s.logger.Check(zap.DebugLevel, "sent"); ce != nil {
		ce.Write(zap.String("cid", env.CID), zap.Any("kinds", env.Kinds()))
	}
	return nil
}

// send is the fire-and-forget path: no cid, no pending entry.
func (s *Socket) send(ctx context.Context, op string, env *rtapi.Envelope) error {
	if err := s.transmit(ctx, env); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// call sends env under a fresh cid and waits for the matching reply.
func (s *Socket) call(ctx context.Context, op string, env *rtapi.Envelope) (reply *rtapi.Envelope, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "rtsock."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		s.metrics.ObserveCall(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.broker.State() != rtsock.StateConnected {
		return nil, errors.Wrap(rtsock.ErrNotConnected, op)
	}

	cid := s.broker.NextCID()
	env.CID = cid
	span.SetAttributes(attribute.String("rtsock.cid", cid))

	wait, err := s.broker.Register(cid)
	if err != nil {
		return nil, err
	}
	s.metrics.SetPending(s.broker.Pending())

	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	if err := s.transmit(ctx, env); err != nil {
		s.broker.Forget(cid)
		s.metrics.SetPending(s.broker.Pending())
		return nil, errors.Wrapf(err, "%s cid %s", op, cid)
	}

	var res broker.Result
	select {
	case res = <-wait:
	case <-ctx.Done():
		if s.broker.Forget(cid) {
			s.metrics.SetPending(s.broker.Pending())
			return nil, errors.Wrapf(ctx.Err(), "%s cid %s", op, cid)
		}
		// Resolved concurrently with the context ending: the reply is
		// already in the channel.
		res = <-wait
	}

	if res.Err != nil {
		return nil, errors.Wrapf(res.Err, "%s cid %s", op, cid)
	}
	if res.Envelope.Error != nil {
		return nil, res.Envelope.Error
	}
	return res.Envelope, nil
}

// expect extracts the payload a call expects from its reply.
func expect[T any](reply *rtapi.Envelope, want rtapi.Kind, payload *T) (*T, error) {
	if payload == nil {
		got := make([]string, 0, 1)
		for _, k := range reply.Kinds() {
			got = append(got, string(k))
		}
		return nil, &rtsock.UnexpectedReplyError{CID: reply.CID, Want: string(want), Got: got}
	}
	return payload, nil
}

func (s *Socket) recoverCallback(name string) {
	if r := recover(); r != nil {
		s.logger.Error("callback panicked", zap.String("callback", name), zap.Any("panic", r), zap.Stack("stack"))
	}
}
