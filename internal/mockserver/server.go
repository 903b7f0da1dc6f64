// Package mockserver is an in-process realtime server speaking the envelope
// protocol. It answers every call kind the socket issues and pushes the
// presence, chat, match, matchmaker and party events a real server would,
// which makes it suitable for end-to-end tests and local development.
//
// Sessions authenticate with the token query parameter; the token is used
// verbatim as both the user id and the username.
package mockserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/protocol"
	rtws "github.com/luciancaetano/rtsock/internal/websocket"
	"github.com/luciancaetano/rtsock/rtapi"
)

const (
	readWait     = 60 * time.Second
	startupGrace = 100 * time.Millisecond
)

// CheckOriginFn validates the origin of a WebSocket upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the handshake completes and before the read
// loop starts.
type OnConnectFn = func(sess *Session)

// OnDisconnectFn is called when a session ends. voluntary is true when
// the server closed the connection itself.
type OnDisconnectFn = func(sess *Session, voluntary bool)

// RPCFunc serves an rpc call. Returning an *rtapi.Error sends it as is; any
// other error is reported as a runtime function exception.
type RPCFunc = func(ctx context.Context, sess *Session, payload string) (string, error)

type Config struct {
	Addr         string
	RateLimit    *rtws.RateLimitConfig
	CheckOrigin  CheckOriginFn
	OnConnect    OnConnectFn
	OnDisconnect OnDisconnectFn
	Logger       *zap.Logger
}

// Server serves the realtime endpoint at /ws.
type Server struct {
	addr     string
	server   *http.Server
	listener net.Listener
	sessions sync.Map // map[string]*Session
	rpcs     sync.Map // map[string]RPCFunc
	world    *world

	rateLimitConfig *rtws.RateLimitConfig

	mu           sync.RWMutex
	running      bool
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnDisconnectFn
	logger       *zap.Logger
}

// New creates a server. A nil rate limit uses rtws.DefaultRateLimitConfig.
//
// Example:
//
//	srv := mockserver.New(&mockserver.Config{Addr: ":7350"})
//	srv.RegisterRPC("echo", func(ctx context.Context, sess *mockserver.Session, payload string) (string, error) {
//	    return payload, nil
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	rl := cfg.RateLimit
	if rl == nil {
		rl = rtws.DefaultRateLimitConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:            cfg.Addr,
		world:           newWorld(),
		rateLimitConfig: rl,
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnDisconnect,
		logger:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler returns the HTTP handler serving /ws, for mounting the server on
// an existing mux or an httptest.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.upgrade)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WithStack(rtsock.ErrAlreadyRunning)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "listen %s", s.addr)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler()}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("realtime server listening", zap.String("addr", ln.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(startupGrace):
		return nil
	}
}

// Addr returns the address the server listens on, or the configured address
// before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// Stop closes every session and, when started with Start, shuts the HTTP
// server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.running = false
	srv := s.server
	s.mu.Unlock()

	s.sessions.Range(func(key, value any) bool {
		value.(*Session).Close()
		return true
	})

	if running && srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// RegisterRPC serves rpc calls for id. Registering again replaces the
// previous function.
func (s *Server) RegisterRPC(id string, fn RPCFunc) {
	s.rpcs.Store(id, fn)
}

// Session returns a connected session by id.
func (s *Server) Session(id string) (*Session, bool) {
	if v, ok := s.sessions.Load(id); ok {
		return v.(*Session), true
	}
	return nil, false
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	n := 0
	s.sessions.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Notify pushes notifications to every session of userID.
func (s *Server) Notify(ctx context.Context, userID string, notifications ...*rtapi.Notification) error {
	env := &rtapi.Envelope{Notifications: &rtapi.Notifications{Notifications: notifications}}
	return s.deliver(ctx, s.world.notify(userID, env))
}

// Broadcast sends env to every connected session.
func (s *Server) Broadcast(ctx context.Context, env *rtapi.Envelope) error {
	var firstErr error
	s.sessions.Range(func(key, value any) bool {
		if err := value.(*Session).Send(ctx, env); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// upgrade authenticates the request by its token and starts a session.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		http.Error(w, "Auth token required", http.StatusUnauthorized)
		return
	}
	appearOnline, _ := strconv.ParseBool(q.Get("status"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(conn, r.RemoteAddr, token, appearOnline, s.rateLimitConfig)
	s.sessions.Store(sess.ID(), sess)
	go s.serve(sess)
}

// serve reads envelopes from sess until the connection ends. Envelopes are
// handled on this goroutine so replies keep request order.
func (s *Server) serve(sess *Session) {
	logger := s.logger.With(zap.String("session_id", sess.ID()), zap.String("user_id", sess.UserID()))
	logger.Debug("session started", zap.String("remote_addr", sess.RemoteAddr()))

	defer func() {
		// The session is already done when the server ended it.
		voluntary := sess.Done().Err() != nil

		s.deliver(context.Background(), s.world.disconnect(sess))
		if s.onDisconnect != nil {
			s.onDisconnect(sess, voluntary)
		}
		s.sessions.Delete(sess.ID())
		sess.Close()
		logger.Debug("session ended", zap.Bool("voluntary", voluntary))
	}()

	conn := sess.conn
	conn.SetReadLimit(rtsock.MaxFrameSize)
	extend := func() { conn.SetReadDeadline(time.Now().Add(readWait)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	if s.onConnect != nil {
		s.onConnect(sess)
	}
	s.deliver(sess.Done(), s.world.connect(sess))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}
		extend()

		if !sess.allow() {
			logger.Warn("rate limit exceeded", zap.String("remote_addr", sess.RemoteAddr()))
			sess.Kick(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			logger.Warn("invalid envelope", zap.Error(err))
			sess.Kick(websocket.CloseProtocolError, "Invalid envelope")
			return
		}
		s.handle(sess, env)
	}
}

// handle answers one envelope. A call carrying a cid always gets a reply,
// an empty acknowledgement when the operation has nothing to return. The
// reply is queued before any push the operation caused.
func (s *Server) handle(sess *Session, env *rtapi.Envelope) {
	ctx := sess.Done()

	var (
		reply *rtapi.Envelope
		out   []delivery
	)
	switch kinds := env.Kinds(); {
	case len(kinds) == 0:
		reply = errorEnvelope(rtapi.ErrorMissingPayload, "Missing message.")
	case kinds[0] == rtapi.KindRpc:
		reply = s.callRPC(ctx, sess, env.Rpc)
	default:
		reply, out = s.world.apply(kinds[0], sess, env)
	}

	if reply == nil && env.CID != "" {
		reply = ack()
	}
	if reply != nil {
		reply.CID = env.CID
		if err := sess.Send(ctx, reply); err != nil {
			s.logger.Debug("reply dropped", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}
	s.deliver(ctx, out)
}

func (s *Server) callRPC(ctx context.Context, sess *Session, req *rtapi.Rpc) *rtapi.Envelope {
	v, ok := s.rpcs.Load(req.ID)
	if !ok {
		return errorEnvelope(rtapi.ErrorRuntimeFunctionNotFound, "RPC function not found")
	}
	payload, err := v.(RPCFunc)(ctx, sess, req.Payload)
	if err != nil {
		var rtErr *rtapi.Error
		if errors.As(err, &rtErr) {
			return &rtapi.Envelope{Error: rtErr}
		}
		return errorEnvelope(rtapi.ErrorRuntimeFunctionException, err.Error())
	}
	return &rtapi.Envelope{Rpc: &rtapi.Rpc{ID: req.ID, Payload: payload}}
}

// deliver sends each delivery, logging the ones that cannot be sent.
func (s *Server) deliver(ctx context.Context, out []delivery) error {
	var firstErr error
	for _, d := range out {
		if err := d.to.Send(ctx, d.env); err != nil {
			s.logger.Debug("push dropped", zap.String("session_id", d.to.ID()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
