package mockserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rtsock/internal/protocol"
	rtws "github.com/luciancaetano/rtsock/internal/websocket"
	"github.com/luciancaetano/rtsock/rtapi"
)

const (
	outboxSize = 256
	writeWait  = 10 * time.Second
	pingPeriod = readWait * 9 / 10
)

var errSessionClosed = errors.New("session closed")

// Session is one socket connected to the server. The session id is minted
// per connection; the user id and username both come from the token.
type Session struct {
	id     string
	userID string
	remote string

	conn    *websocket.Conn
	limiter *rate.Limiter // inbound envelopes
	outbox  chan []byte

	done context.Context
	stop context.CancelFunc

	mu     sync.RWMutex
	closed bool

	// Guarded by the world lock.
	online bool
	status string
}

func newSession(conn *websocket.Conn, remote, token string, appearOnline bool, rl *rtws.RateLimitConfig) *Session {
	done, stop := context.WithCancel(context.Background())
	s := &Session{
		id:      uuid.New().String(),
		userID:  token,
		remote:  remote,
		conn:    conn,
		limiter: rl.NewLimiter(),
		outbox:  make(chan []byte, outboxSize),
		done:    done,
		stop:    stop,
		online:  appearOnline,
	}
	go s.writeLoop()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the user the session token identifies.
func (s *Session) UserID() string { return s.userID }

func (s *Session) RemoteAddr() string { return s.remote }

// Done is cancelled when the session closes.
func (s *Session) Done() context.Context { return s.done }

func (s *Session) presence() *rtapi.UserPresence {
	return &rtapi.UserPresence{UserID: s.userID, SessionID: s.id, Username: s.userID}
}

// Send encodes env and queues it for the write loop.
func (s *Session) Send(ctx context.Context, env *rtapi.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	// The read lock keeps Kick from closing the outbox under us.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.WithStack(errSessionClosed)
	}
	select {
	case s.outbox <- data:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-s.done.Done():
		return errors.WithStack(errSessionClosed)
	}
}

// Close ends the session with a normal closure.
func (s *Session) Close() error {
	return s.Kick(websocket.CloseNormalClosure, "")
}

// Kick ends the session with the given close code and reason. Only the first
// call has any effect.
func (s *Session) Kick(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stop()
	close(s.outbox)

	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return s.conn.Close()
}

// allow reports whether another inbound envelope fits the rate limit.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// writeLoop owns every data frame written to the connection and keeps the
// peer alive with pings.
func (s *Session) writeLoop() {
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()
	defer s.conn.Close()

	write := func(messageType int, data []byte) error {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case data, ok := <-s.outbox:
			if !ok || write(websocket.TextMessage, data) != nil {
				return
			}
		case <-keepalive.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		case <-s.done.Done():
			return
		}
	}
}
