package websocket

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/internal/metrics"
	"github.com/luciancaetano/rtsock/rtapi"
)

func TestSocketID(t *testing.T) {
	t.Parallel()

	s1, _ := newTestSocket(t, nil)
	s2, _ := newTestSocket(t, nil)
	assert.Len(t, s1.ID(), 36)
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestConnectBuildsAddress(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, &Config{Host: "game.example.com", Port: 7351})
	assert.Equal(t, rtsock.StateDisconnected, s.State())

	connectSocket(t, s)

	assert.Equal(t, rtsock.StateConnected, s.State())
	assert.Equal(t, "ws://game.example.com:7351/ws?lang=en&status=true&token=token", fa.lastAddr)
}

func TestConnectWhenConnectedReturnsImmediately(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	// No Tick: a second connect must not wait for a signal that already fired.
	err := s.Connect(t.Context(), rtsock.NewSession("token", ""), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fa.dialCount())
}

func TestConcurrentConnectSharesDial(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	session := rtsock.NewSession("token", "")

	const callers = 5
	results := make([]<-chan outcome[struct{}], callers)
	for i := range results {
		results[i] = async(func() (struct{}, error) {
			return struct{}{}, s.Connect(t.Context(), session, true)
		})
	}

	require.Eventually(t, func() bool {
		s.Tick()
		return s.State() == rtsock.StateConnected
	}, 2*time.Second, time.Millisecond)

	for _, ch := range results {
		assert.NoError(t, await(t, ch).err)
	}
	assert.Equal(t, 1, fa.dialCount())
}

func TestConnectFailsWhenTransportCloses(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	fa.failConnect = true

	done := async(func() (struct{}, error) {
		return struct{}{}, s.Connect(t.Context(), rtsock.NewSession("token", ""), true)
	})
	require.Eventually(t, func() bool { return fa.dialCount() == 1 }, 2*time.Second, time.Millisecond)
	s.Tick()

	o := await(t, done)
	assert.True(t, errors.Is(o.err, rtsock.ErrConnectFailed))
	assert.Equal(t, rtsock.StateDisconnected, s.State())
}

func TestConnectContextCancelled(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	// Never ticked, so the connected signal is never delivered.
	err := s.Connect(ctx, rtsock.NewSession("token", ""), true)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, rtsock.StateDisconnected, s.State())
	assert.Equal(t, 1, fa.dialCount())
}

// TestConnectDeadlineRacesConnected expires the dialing caller's context
// right after the connected signal was delivered. The connection must be
// kept and Connect must report it.
func TestConnectDeadlineRacesConnected(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		s, fa := newTestSocket(t, nil)
		ctx, cancel := context.WithCancel(t.Context())
		fa.onDial = func() {
			s.Tick()
			cancel()
		}

		err := s.Connect(ctx, rtsock.NewSession("token", ""), true)
		require.NoError(t, err, "iteration %d", i)

		s.Tick()
		assert.Equal(t, rtsock.StateConnected, s.State())
		assert.True(t, fa.IsConnected(), "connection must not be torn down")
	}
}

func TestConnectNilSession(t *testing.T) {
	t.Parallel()

	s, _ := newTestSocket(t, nil)
	assert.Error(t, s.Connect(t.Context(), nil, true))
}

func TestCallWhenNotConnected(t *testing.T) {
	t.Parallel()

	s, _ := newTestSocket(t, nil)

	_, err := s.CreateMatch(t.Context(), "")
	assert.True(t, errors.Is(err, rtsock.ErrNotConnected))

	err = s.UpdateStatus(t.Context(), "away")
	assert.True(t, errors.Is(err, rtsock.ErrNotConnected))
	assert.Equal(t, 0, s.Pending())
}

// Two concurrent calls answered in issue order each receive their own reply.
func TestConcurrentCallsResolveByCID(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	// Burn cid 1 so the calls below use 2 and 3.
	ping := async(func() (struct{}, error) { return struct{}{}, s.Ping(t.Context()) })
	sent := fa.nextSent(t)
	require.Equal(t, "1", sent.CID)
	fa.reply(t, &rtapi.Envelope{CID: "1", Pong: &rtapi.Pong{}})
	s.Tick()
	require.NoError(t, await(t, ping).err)

	match := async(func() (*rtapi.Match, error) { return s.CreateMatch(t.Context(), "") })
	matchReq := fa.nextSent(t)
	require.Equal(t, "2", matchReq.CID)
	require.NotNil(t, matchReq.MatchCreate)

	channel := async(func() (*rtapi.Channel, error) {
		return s.JoinChat(t.Context(), "MyRoom", rtapi.ChannelTypeRoom, false, false)
	})
	chatReq := fa.nextSent(t)
	require.Equal(t, "3", chatReq.CID)
	require.NotNil(t, chatReq.ChannelJoin)
	assert.Equal(t, "MyRoom", chatReq.ChannelJoin.Target)
	assert.Equal(t, rtapi.ChannelTypeRoom, chatReq.ChannelJoin.Type)
	assert.Equal(t, 2, s.Pending())

	fa.reply(t, &rtapi.Envelope{CID: "2", Match: &rtapi.Match{MatchID: "match-1"}})
	fa.reply(t, &rtapi.Envelope{CID: "3", Channel: &rtapi.Channel{ID: "2...MyRoom", RoomName: "MyRoom"}})
	s.Tick()

	m := await(t, match)
	require.NoError(t, m.err)
	assert.Equal(t, "match-1", m.val.MatchID)

	c := await(t, channel)
	require.NoError(t, c.err)
	assert.Equal(t, "MyRoom", c.val.RoomName)
	assert.Equal(t, 0, s.Pending())
}

func TestRepliesOutOfOrder(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	const n = 10
	calls := make(map[string]<-chan outcome[*rtapi.Rpc], n)
	for i := 0; i < n; i++ {
		ch := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "echo", "") })
		req := fa.nextSent(t)
		calls[req.CID] = ch
	}
	require.Len(t, calls, n)

	// Answer in reverse cid order, each echoing its own cid.
	for i := n; i >= 1; i-- {
		cid := strconv.Itoa(i)
		fa.reply(t, &rtapi.Envelope{CID: cid, Rpc: &rtapi.Rpc{ID: "echo", Payload: cid}})
	}
	s.Tick()

	for cid, ch := range calls {
		o := await(t, ch)
		require.NoError(t, o.err)
		assert.Equal(t, cid, o.val.Payload)
	}
}

func TestUnmatchedReplyDoesNotAffectPending(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	call := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "fn", "{}") })
	req := fa.nextSent(t)

	fa.reply(t, &rtapi.Envelope{CID: "999", Rpc: &rtapi.Rpc{ID: "fn", Payload: "stale"}})
	s.Tick()
	assert.Equal(t, 1, s.Pending())

	fa.reply(t, &rtapi.Envelope{CID: req.CID, Rpc: &rtapi.Rpc{ID: "fn", Payload: "fresh"}})
	s.Tick()

	o := await(t, call)
	require.NoError(t, o.err)
	assert.Equal(t, "fresh", o.val.Payload)
}

func TestMalformedFrameIsDropped(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	call := async(func() (*rtapi.Match, error) { return s.CreateMatch(t.Context(), "") })
	req := fa.nextSent(t)

	fa.receive([]byte(`{"cid": "1", "match": {`))
	fa.receive([]byte(`[1,2,3]`))
	fa.fail(errors.New("read: connection reset"))
	assert.NotPanics(t, s.Tick)
	assert.Equal(t, 1, s.Pending())

	fa.reply(t, &rtapi.Envelope{CID: req.CID, Match: &rtapi.Match{MatchID: "ok"}})
	s.Tick()

	o := await(t, call)
	require.NoError(t, o.err)
	assert.Equal(t, "ok", o.val.MatchID)
}

func TestServerErrorReply(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	call := async(func() (*rtapi.Match, error) { return s.JoinMatch(t.Context(), "missing", nil) })
	req := fa.nextSent(t)
	fa.reply(t, &rtapi.Envelope{CID: req.CID, Error: &rtapi.Error{
		Code:    rtapi.ErrorMatchNotFound,
		Message: "Match not found",
	}})
	s.Tick()

	o := await(t, call)
	require.Error(t, o.err)
	var rtErr *rtapi.Error
	require.True(t, errors.As(o.err, &rtErr))
	assert.Equal(t, rtapi.ErrorMatchNotFound, rtErr.Code)
	assert.Nil(t, o.val)
}

func TestUnexpectedReplyShape(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	call := async(func() (*rtapi.Match, error) { return s.CreateMatch(t.Context(), "") })
	req := fa.nextSent(t)
	fa.reply(t, &rtapi.Envelope{CID: req.CID, Pong: &rtapi.Pong{}})
	s.Tick()

	o := await(t, call)
	assert.True(t, errors.Is(o.err, rtsock.ErrUnexpectedReply))
	var shapeErr *rtsock.UnexpectedReplyError
	require.True(t, errors.As(o.err, &shapeErr))
	assert.Equal(t, req.CID, shapeErr.CID)
	assert.Equal(t, "match", shapeErr.Want)
	assert.Equal(t, []string{"pong"}, shapeErr.Got)
}

func TestCloseCancelsPendingCalls(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	first := async(func() (*rtapi.Match, error) { return s.CreateMatch(t.Context(), "") })
	fa.nextSent(t)
	second := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "fn", "") })
	fa.nextSent(t)
	require.Equal(t, 2, s.Pending())

	require.NoError(t, s.Close(t.Context()))
	assert.Equal(t, rtsock.StateClosed, s.State())
	assert.Equal(t, 0, s.Pending())

	assert.True(t, errors.Is(await(t, first).err, rtsock.ErrClosed))
	assert.True(t, errors.Is(await(t, second).err, rtsock.ErrClosed))

	// The transport close delivered later keeps the socket closed.
	s.Tick()
	assert.Equal(t, rtsock.StateClosed, s.State())

	_, err := s.CreateMatch(t.Context(), "")
	assert.True(t, errors.Is(err, rtsock.ErrNotConnected))

	// Closing twice is a no-op.
	assert.NoError(t, s.Close(t.Context()))
}

func TestCloseWithCancelledContext(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, s.Close(ctx))
	s.Tick()

	assert.Equal(t, rtsock.StateClosed, s.State())
	assert.False(t, fa.IsConnected())
}

func TestTransportCloseCancelsPendingCalls(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	var closed atomic.Int32
	s.OnClosed(func() { closed.Add(1) })
	connectSocket(t, s)

	call := async(func() (*rtapi.Status, error) { return s.FollowUsers(t.Context(), []string{"u1"}, nil) })
	fa.nextSent(t)

	fa.serverClose()
	s.Tick()

	assert.True(t, errors.Is(await(t, call).err, rtsock.ErrDisconnected))
	assert.Equal(t, rtsock.StateDisconnected, s.State())
	assert.Equal(t, int32(1), closed.Load())

	// A disconnected socket can connect again.
	connectSocket(t, s)
	assert.Equal(t, 2, fa.dialCount())
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, &Config{CallTimeout: 30 * time.Millisecond})
	connectSocket(t, s)

	call := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "slow", "") })
	req := fa.nextSent(t)

	o := await(t, call)
	assert.True(t, errors.Is(o.err, context.DeadlineExceeded))
	assert.Equal(t, 0, s.Pending())

	// The late reply finds nothing to resolve.
	fa.reply(t, &rtapi.Envelope{CID: req.CID, Rpc: &rtapi.Rpc{ID: "slow"}})
	assert.NotPanics(t, s.Tick)
	assert.Equal(t, 0, s.Pending())
}

func TestCallContextCancelled(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	ctx, cancel := context.WithCancel(t.Context())
	call := async(func() (*rtapi.Party, error) { return s.CreateParty(ctx, true, 4) })
	req := fa.nextSent(t)
	require.NotNil(t, req.PartyCreate)
	assert.Equal(t, int32(4), req.PartyCreate.MaxSize)

	cancel()
	assert.True(t, errors.Is(await(t, call).err, context.Canceled))
	assert.Equal(t, 0, s.Pending())
}

func TestFireAndForgetCreatesNoPendingCall(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	require.NoError(t, s.SendMatchState(t.Context(), "match-1", 7, []byte{0x01, 0x02}, nil))
	env := fa.nextSent(t)
	assert.Empty(t, env.CID)
	require.NotNil(t, env.MatchDataSend)
	assert.Equal(t, int64(7), env.MatchDataSend.OpCode)
	assert.Equal(t, []byte{0x01, 0x02}, env.MatchDataSend.Data)
	assert.Equal(t, 0, s.Pending())
}

func TestStatusPresenceHandlerInvokedPerEvent(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	var got []*rtapi.StatusPresenceEvent
	s.OnReceivedStatusPresence(func(ev *rtapi.StatusPresenceEvent) {
		got = append(got, ev)
	})

	fa.reply(t, &rtapi.Envelope{StatusPresenceEvent: &rtapi.StatusPresenceEvent{
		Joins: []*rtapi.UserPresence{{UserID: "a"}},
	}})
	fa.reply(t, &rtapi.Envelope{StatusPresenceEvent: &rtapi.StatusPresenceEvent{
		Leaves: []*rtapi.UserPresence{{UserID: "a"}},
	}})
	s.Tick()

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Joins[0].UserID)
	assert.Equal(t, "a", got[1].Leaves[0].UserID)
}

func TestPushHandlers(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	var got []string
	record := func(name string) { got = append(got, name) }

	s.OnReceivedChannelMessage(func(*rtapi.ChannelMessage) { record("channel_message") })
	s.OnReceivedChannelPresence(func(*rtapi.ChannelPresenceEvent) { record("channel_presence") })
	s.OnReceivedStreamPresence(func(*rtapi.StreamPresenceEvent) { record("stream_presence") })
	s.OnReceivedStreamState(func(*rtapi.StreamData) { record("stream_data") })
	s.OnReceivedMatchPresence(func(*rtapi.MatchPresenceEvent) { record("match_presence") })
	s.OnReceivedMatchState(func(*rtapi.MatchData) { record("match_data") })
	s.OnReceivedMatchmakerMatched(func(*rtapi.MatchmakerMatched) { record("matchmaker_matched") })
	s.OnReceivedNotification(func(*rtapi.Notifications) { record("notifications") })
	s.OnReceivedParty(func(*rtapi.Party) { record("party") })
	s.OnReceivedPartyPresence(func(*rtapi.PartyPresenceEvent) { record("party_presence") })
	s.OnReceivedPartyData(func(*rtapi.PartyData) { record("party_data") })
	s.OnReceivedPartyClose(func(*rtapi.PartyClose) { record("party_close") })
	s.OnReceivedPartyLeader(func(*rtapi.PartyLeader) { record("party_leader") })
	s.OnReceivedPartyJoinRequest(func(*rtapi.PartyJoinRequest) { record("party_join_request") })
	s.OnReceivedError(func(*rtapi.Error) { record("error") })

	pushes := []*rtapi.Envelope{
		{ChannelMessage: &rtapi.ChannelMessage{Content: "{}"}},
		{ChannelPresenceEvent: &rtapi.ChannelPresenceEvent{}},
		{StreamPresenceEvent: &rtapi.StreamPresenceEvent{}},
		{StreamData: &rtapi.StreamData{}},
		{MatchPresenceEvent: &rtapi.MatchPresenceEvent{}},
		{MatchData: &rtapi.MatchData{OpCode: 1}},
		{MatchmakerMatched: &rtapi.MatchmakerMatched{}},
		{Notifications: &rtapi.Notifications{}},
		{Party: &rtapi.Party{}},
		{PartyPresenceEvent: &rtapi.PartyPresenceEvent{}},
		{PartyData: &rtapi.PartyData{}},
		{PartyClose: &rtapi.PartyClose{}},
		{PartyLeader: &rtapi.PartyLeader{}},
		{PartyJoinRequest: &rtapi.PartyJoinRequest{}},
		{Error: &rtapi.Error{Message: "uncorrelated"}},
	}
	for _, env := range pushes {
		fa.reply(t, env)
	}
	s.Tick()

	assert.Equal(t, []string{
		"channel_message", "channel_presence", "stream_presence", "stream_data",
		"match_presence", "match_data", "matchmaker_matched", "notifications",
		"party", "party_presence", "party_data", "party_close", "party_leader",
		"party_join_request", "error",
	}, got)
}

func TestHandlerReplacement(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	var first, second int
	s.OnReceivedNotification(func(*rtapi.Notifications) { first++ })
	s.OnReceivedNotification(func(*rtapi.Notifications) { second++ })

	fa.reply(t, &rtapi.Envelope{Notifications: &rtapi.Notifications{}})
	s.Tick()
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	s.OnReceivedNotification(nil)
	fa.reply(t, &rtapi.Envelope{Notifications: &rtapi.Notifications{}})
	s.Tick()
	assert.Equal(t, 1, second)
}

func TestHandlerReplacedWhileDispatching(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	var calls atomic.Int64
	s.OnReceivedMatchState(func(*rtapi.MatchData) { calls.Add(1) })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.OnReceivedMatchState(func(*rtapi.MatchData) { calls.Add(1) })
			}
		}
	}()

	for i := 0; i < 200; i++ {
		fa.reply(t, &rtapi.Envelope{MatchData: &rtapi.MatchData{MatchID: "m"}})
		s.Tick()
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, int64(200), calls.Load())
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	s.OnReceivedChannelMessage(func(*rtapi.ChannelMessage) { panic("boom") })
	fa.reply(t, &rtapi.Envelope{ChannelMessage: &rtapi.ChannelMessage{}})
	assert.NotPanics(t, s.Tick)

	// Dispatch keeps working after the panic.
	call := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "fn", "") })
	req := fa.nextSent(t)
	fa.reply(t, &rtapi.Envelope{CID: req.CID, Rpc: &rtapi.Rpc{ID: "fn"}})
	s.Tick()
	assert.NoError(t, await(t, call).err)
}

func TestHandlerMayIssueCalls(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	results := make(chan outcome[*rtapi.ChannelMessageAck], 1)
	s.OnReceivedChannelMessage(func(msg *rtapi.ChannelMessage) {
		// Fire-and-forget from the dispatch goroutine returns immediately.
		if err := s.UpdateStatus(context.Background(), "typing"); err != nil {
			t.Errorf("update status: %v", err)
		}
		go func() {
			ack, err := s.WriteChatMessage(context.Background(), msg.ChannelID, `{"reply":true}`)
			results <- outcome[*rtapi.ChannelMessageAck]{val: ack, err: err}
		}()
	})

	fa.reply(t, &rtapi.Envelope{ChannelMessage: &rtapi.ChannelMessage{ChannelID: "room"}})
	s.Tick()

	status := fa.nextSent(t)
	require.NotNil(t, status.StatusUpdate)
	req := fa.nextSent(t)
	require.NotNil(t, req.ChannelMessageSend)

	fa.reply(t, &rtapi.Envelope{CID: req.CID, ChannelMessageAck: &rtapi.ChannelMessageAck{ChannelID: "room", MessageID: "m1"}})
	s.Tick()

	o := await(t, results)
	require.NoError(t, o.err)
	assert.Equal(t, "m1", o.val.MessageID)
}

func TestLateErrorReachesErrorHandler(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, nil)
	connectSocket(t, s)

	var got *rtapi.Error
	s.OnReceivedError(func(e *rtapi.Error) { got = e })

	fa.reply(t, &rtapi.Envelope{CID: "42", Error: &rtapi.Error{Code: rtapi.ErrorBadInput, Message: "late"}})
	s.Tick()

	require.NotNil(t, got)
	assert.Equal(t, "late", got.Message)
}

func TestLifecycleHooks(t *testing.T) {
	t.Parallel()

	s, _ := newTestSocket(t, nil)
	var connected atomic.Int32
	s.OnConnected(func() { connected.Add(1) })
	s.OnConnected(func() { connected.Add(10) })

	connectSocket(t, s)
	assert.Equal(t, int32(10), connected.Load())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	t.Parallel()

	s, fa := newTestSocket(t, &Config{TickInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(t.Context())
	runDone := async(func() (struct{}, error) { return struct{}{}, s.Run(ctx, 0) })

	require.NoError(t, s.Connect(t.Context(), rtsock.NewSession("token", ""), true))

	ack, err := func() (*rtapi.Rpc, error) {
		call := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "fn", "x") })
		req := fa.nextSent(t)
		fa.reply(t, &rtapi.Envelope{CID: req.CID, Rpc: &rtapi.Rpc{ID: "fn", Payload: "x"}})
		o := await(t, call)
		return o.val, o.err
	}()
	require.NoError(t, err)
	assert.Equal(t, "x", ack.Payload)

	cancel()
	assert.True(t, errors.Is(await(t, runDone).err, context.Canceled))
}

func TestOperationsWireShape(t *testing.T) {
	t.Parallel()

	presence := &rtapi.UserPresence{UserID: "u2", SessionID: "s2"}

	tests := []struct {
		name   string
		invoke func(ctx context.Context, s *Socket) error
		kind   rtapi.Kind
		reply  *rtapi.Envelope
	}{
		{"create match", func(ctx context.Context, s *Socket) error {
			_, err := s.CreateMatch(ctx, "named")
			return err
		}, rtapi.KindMatchCreate, &rtapi.Envelope{Match: &rtapi.Match{}}},
		{"join match", func(ctx context.Context, s *Socket) error {
			_, err := s.JoinMatch(ctx, "m1", map[string]string{"k": "v"})
			return err
		}, rtapi.KindMatchJoin, &rtapi.Envelope{Match: &rtapi.Match{}}},
		{"join match by token", func(ctx context.Context, s *Socket) error {
			_, err := s.JoinMatchByToken(ctx, "tok", nil)
			return err
		}, rtapi.KindMatchJoin, &rtapi.Envelope{Match: &rtapi.Match{}}},
		{"leave match", func(ctx context.Context, s *Socket) error {
			return s.LeaveMatch(ctx, "m1")
		}, rtapi.KindMatchLeave, nil},
		{"join chat", func(ctx context.Context, s *Socket) error {
			_, err := s.JoinChat(ctx, "room", rtapi.ChannelTypeRoom, true, false)
			return err
		}, rtapi.KindChannelJoin, &rtapi.Envelope{Channel: &rtapi.Channel{}}},
		{"leave chat", func(ctx context.Context, s *Socket) error {
			return s.LeaveChat(ctx, "c1")
		}, rtapi.KindChannelLeave, &rtapi.Envelope{}},
		{"write chat message", func(ctx context.Context, s *Socket) error {
			_, err := s.WriteChatMessage(ctx, "c1", "{}")
			return err
		}, rtapi.KindChannelMessageSend, &rtapi.Envelope{ChannelMessageAck: &rtapi.ChannelMessageAck{}}},
		{"update chat message", func(ctx context.Context, s *Socket) error {
			_, err := s.UpdateChatMessage(ctx, "c1", "m1", "{}")
			return err
		}, rtapi.KindChannelMessageUpdate, &rtapi.Envelope{ChannelMessageAck: &rtapi.ChannelMessageAck{}}},
		{"remove chat message", func(ctx context.Context, s *Socket) error {
			_, err := s.RemoveChatMessage(ctx, "c1", "m1")
			return err
		}, rtapi.KindChannelMessageRemove, &rtapi.Envelope{ChannelMessageAck: &rtapi.ChannelMessageAck{}}},
		{"add matchmaker", func(ctx context.Context, s *Socket) error {
			_, err := s.AddMatchmaker(ctx, &rtapi.MatchmakerAdd{MinCount: 2, MaxCount: 4, Query: "*"})
			return err
		}, rtapi.KindMatchmakerAdd, &rtapi.Envelope{MatchmakerTicket: &rtapi.MatchmakerTicket{}}},
		{"remove matchmaker", func(ctx context.Context, s *Socket) error {
			return s.RemoveMatchmaker(ctx, "t1")
		}, rtapi.KindMatchmakerRemove, &rtapi.Envelope{}},
		{"follow users", func(ctx context.Context, s *Socket) error {
			_, err := s.FollowUsers(ctx, []string{"u1"}, []string{"bob"})
			return err
		}, rtapi.KindStatusFollow, &rtapi.Envelope{Status: &rtapi.Status{}}},
		{"unfollow users", func(ctx context.Context, s *Socket) error {
			return s.UnfollowUsers(ctx, []string{"u1"})
		}, rtapi.KindStatusUnfollow, &rtapi.Envelope{}},
		{"update status", func(ctx context.Context, s *Socket) error {
			return s.UpdateStatus(ctx, "online")
		}, rtapi.KindStatusUpdate, nil},
		{"rpc", func(ctx context.Context, s *Socket) error {
			_, err := s.RPC(ctx, "fn", "{}")
			return err
		}, rtapi.KindRpc, &rtapi.Envelope{Rpc: &rtapi.Rpc{}}},
		{"ping", func(ctx context.Context, s *Socket) error {
			return s.Ping(ctx)
		}, rtapi.KindPing, &rtapi.Envelope{Pong: &rtapi.Pong{}}},
		{"create party", func(ctx context.Context, s *Socket) error {
			_, err := s.CreateParty(ctx, true, 4)
			return err
		}, rtapi.KindPartyCreate, &rtapi.Envelope{Party: &rtapi.Party{}}},
		{"join party", func(ctx context.Context, s *Socket) error {
			return s.JoinParty(ctx, "p1")
		}, rtapi.KindPartyJoin, &rtapi.Envelope{}},
		{"leave party", func(ctx context.Context, s *Socket) error {
			return s.LeaveParty(ctx, "p1")
		}, rtapi.KindPartyLeave, &rtapi.Envelope{}},
		{"close party", func(ctx context.Context, s *Socket) error {
			return s.CloseParty(ctx, "p1")
		}, rtapi.KindPartyClose, &rtapi.Envelope{}},
		{"accept party member", func(ctx context.Context, s *Socket) error {
			return s.AcceptPartyMember(ctx, "p1", presence)
		}, rtapi.KindPartyAccept, &rtapi.Envelope{}},
		{"promote party member", func(ctx context.Context, s *Socket) error {
			return s.PromotePartyMember(ctx, "p1", presence)
		}, rtapi.KindPartyPromote, &rtapi.Envelope{}},
		{"remove party member", func(ctx context.Context, s *Socket) error {
			return s.RemovePartyMember(ctx, "p1", presence)
		}, rtapi.KindPartyRemove, &rtapi.Envelope{}},
		{"list party join requests", func(ctx context.Context, s *Socket) error {
			_, err := s.ListPartyJoinRequests(ctx, "p1")
			return err
		}, rtapi.KindPartyJoinRequestList, &rtapi.Envelope{PartyJoinRequest: &rtapi.PartyJoinRequest{}}},
		{"add party matchmaker", func(ctx context.Context, s *Socket) error {
			_, err := s.AddMatchmakerParty(ctx, "p1", &rtapi.MatchmakerAdd{MinCount: 2, MaxCount: 2, Query: "*"})
			return err
		}, rtapi.KindPartyMatchmakerAdd, &rtapi.Envelope{PartyMatchmakerTicket: &rtapi.PartyMatchmakerTicket{}}},
		{"remove party matchmaker", func(ctx context.Context, s *Socket) error {
			return s.RemoveMatchmakerParty(ctx, "p1", "t1")
		}, rtapi.KindPartyMatchmakerRemove, &rtapi.Envelope{}},
		{"send party data", func(ctx context.Context, s *Socket) error {
			return s.SendPartyData(ctx, "p1", 3, []byte("hi"))
		}, rtapi.KindPartyDataSend, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, fa := newTestSocket(t, nil)
			connectSocket(t, s)

			done := async(func() (struct{}, error) { return struct{}{}, tt.invoke(t.Context(), s) })
			sent := fa.nextSent(t)
			assert.Equal(t, []rtapi.Kind{tt.kind}, sent.Kinds())

			if tt.reply == nil {
				assert.Empty(t, sent.CID, "fire-and-forget must not carry a cid")
			} else {
				assert.NotEmpty(t, sent.CID)
				reply := *tt.reply
				reply.CID = sent.CID
				fa.reply(t, &reply)
				s.Tick()
			}
			assert.NoError(t, await(t, done).err)
			assert.Equal(t, 0, s.Pending())
		})
	}
}

func TestSocketMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(reg))
	s, fa := newTestSocket(t, &Config{Metrics: collector})
	connectSocket(t, s)

	call := async(func() (*rtapi.Rpc, error) { return s.RPC(t.Context(), "fn", "") })
	req := fa.nextSent(t)
	fa.reply(t, &rtapi.Envelope{CID: req.CID, Rpc: &rtapi.Rpc{}})
	fa.receive([]byte("not json"))
	fa.reply(t, &rtapi.Envelope{Notifications: &rtapi.Notifications{}})
	s.Tick()
	require.NoError(t, await(t, call).err)

	expected := `
# HELP rtsock_frames_dropped_total Total number of inbound frames dropped by the dispatcher
# TYPE rtsock_frames_dropped_total counter
rtsock_frames_dropped_total{reason="malformed"} 1
rtsock_frames_dropped_total{reason="no_handler"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rtsock_frames_dropped_total"))

	expected = `
# HELP rtsock_calls_total Total number of call/response operations by outcome
# TYPE rtsock_calls_total counter
rtsock_calls_total{op="rpc",status="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rtsock_calls_total"))
}
