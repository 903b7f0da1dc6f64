package websocket

import (
	"go.uber.org/zap"

	"github.com/luciancaetano/rtsock/internal/metrics"
	"github.com/luciancaetano/rtsock/internal/protocol"
	"github.com/luciancaetano/rtsock/rtapi"
)

// dispatch handles one inbound transport delivery. It runs on the goroutine
// calling Tick and never returns an error: nothing it drops can be blamed on
// a specific call.
func (s *Socket) dispatch(frame []byte, err error) {
	if err != nil {
		s.logger.Warn("transport error", zap.Error(err))
		s.metrics.FrameDropped(metrics.DropTransport)
		return
	}
	s.metrics.FrameReceived()

	env, err := protocol.Decode(frame)
	if err != nil {
		s.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("size", len(frame)))
		s.metrics.FrameDropped(metrics.DropMalformed)
		return
	}

	if env.CID != "" {
		if s.broker.Resolve(env.CID, env) {
			s.metrics.SetPending(s.broker.Pending())
			return
		}
		s.logger.Debug("no pending call for reply", zap.String("cid", env.CID), zap.Any("kinds", env.Kinds()))
	}

	kind, n := env.PushKind()
	if n == 0 {
		s.metrics.FrameDropped(metrics.DropUnhandled)
		return
	}
	if n > 1 {
		s.logger.Warn("frame carries several push payloads, using the first", zap.String("kind", string(kind)), zap.Any("kinds", env.Kinds()))
	}

	h, ok := s.handlers.Load(kind)
	if !ok {
		s.metrics.FrameDropped(metrics.DropNoHandler)
		return
	}
	s.metrics.PushEvent(string(kind))

	defer s.recoverCallback(string(kind))
	h.(func(*rtapi.Envelope))(env)
}
