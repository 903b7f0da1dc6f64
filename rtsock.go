package rtsock

import (
	"context"
	"time"

	"github.com/luciancaetano/rtsock/rtapi"
)

// State is the lifecycle state of a Socket.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Adapter is the transport a Socket runs on.
//
// The adapter owns the network connection and whatever goroutines it needs to
// read from it, but it never calls into the socket on its own: inbound frames,
// connection and close notifications are buffered and delivered only from
// inside Tick. Each On* method holds a single callback; registering again
// replaces the previous one.
//
// Example of a minimal driver loop:
//
//	adapter.OnReceived(func(frame []byte, err error) { ... })
//	adapter.Connect("ws://127.0.0.1:7350/ws?token=...", 10*time.Second)
//	for range time.Tick(16 * time.Millisecond) {
//	    adapter.Tick()
//	}
type Adapter interface {
	// Connect starts connecting to addr and returns without waiting for the
	// handshake. OnConnected fires from a later Tick on success, OnClosed
	// (after an OnReceived error) on failure.
	Connect(addr string, timeout time.Duration) error

	// Send queues one text frame. reliable is a hint for transports that
	// distinguish delivery classes.
	Send(data []byte, reliable bool) error

	// Close tears the connection down. OnClosed fires from a later Tick.
	Close() error

	IsConnected() bool
	IsConnecting() bool

	// Tick delivers every buffered event to the registered callbacks and
	// returns without blocking.
	Tick()

	OnConnected(fn func())
	OnClosed(fn func())
	OnReceived(fn func(frame []byte, err error))
}

// Socket multiplexes realtime operations over one Adapter connection.
//
// Call/response operations block until the reply carrying their correlation
// id is dispatched, the context is done, the configured call timeout expires,
// or the socket is closed. Dispatch only happens inside Tick, so something
// must keep ticking while a call waits: either the application's own loop or
// Run in a goroutine.
//
// Example usage:
//
//	socket := ws.New(ws.NewConfig("127.0.0.1", 7350))
//	go socket.Run(ctx, 0)
//
//	if err := socket.Connect(ctx, session, true); err != nil {
//	    return err
//	}
//	channel, err := socket.JoinChat(ctx, "MyRoom", rtapi.ChannelTypeRoom, false, false)
type Socket interface {
	// ID returns the unique identifier of this socket instance.
	ID() string

	// State returns the current lifecycle state.
	State() State

	// Connect dials the server with the session token and waits for the
	// connection to be reported. It returns immediately when already
	// connected; concurrent callers share a single dial.
	Connect(ctx context.Context, session *Session, appearOnline bool) error

	// Close closes the connection and fails every pending call with ErrClosed.
	Close(ctx context.Context) error

	// Tick pumps buffered transport events into the dispatcher.
	Tick()

	// Run ticks every interval until ctx is done. A zero interval uses the
	// configured tick interval.
	Run(ctx context.Context, interval time.Duration) error

	// Pending returns the number of calls waiting for a reply.
	Pending() int

	// CreateMatch creates a relayed match and replies with it. A named match
	// is joined instead if it already exists.
	CreateMatch(ctx context.Context, name string) (*rtapi.Match, error)

	// JoinMatch joins the match with the given id and replies with the match and
	// its current presences.
	JoinMatch(ctx context.Context, matchID string, metadata map[string]string) (*rtapi.Match, error)

	// JoinMatchByToken joins the match a matchmaker ticket resolved to.
	JoinMatchByToken(ctx context.Context, token string, metadata map[string]string) (*rtapi.Match, error)

	// LeaveMatch leaves the match. It does not wait for a reply.
	LeaveMatch(ctx context.Context, matchID string) error

	// SendMatchState sends state to the match. Nil presences means every
	// participant. It does not wait for a reply.
	SendMatchState(ctx context.Context, matchID string, opCode int64, state []byte, presences []*rtapi.UserPresence) error

	// JoinChat joins a room, group or direct channel and replies with the
	// channel.
	JoinChat(ctx context.Context, target string, channelType rtapi.ChannelType, persistence, hidden bool) (*rtapi.Channel, error)

	// LeaveChat leaves the channel and waits for the server's acknowledgement.
	LeaveChat(ctx context.Context, channelID string) error

	// WriteChatMessage sends content, which must be a JSON object, to the channel
	// and replies with the message ack.
	WriteChatMessage(ctx context.Context, channelID, content string) (*rtapi.ChannelMessageAck, error)

	// UpdateChatMessage replaces the content of a message and replies with the
	// message ack.
	UpdateChatMessage(ctx context.Context, channelID, messageID, content string) (*rtapi.ChannelMessageAck, error)

	// RemoveChatMessage deletes a message and replies with the message ack.
	RemoveChatMessage(ctx context.Context, channelID, messageID string) (*rtapi.ChannelMessageAck, error)

	// AddMatchmaker submits a matchmaking ticket and replies with its ticket id.
	// A nil request uses the server defaults.
	AddMatchmaker(ctx context.Context, req *rtapi.MatchmakerAdd) (*rtapi.MatchmakerTicket, error)

	// RemoveMatchmaker cancels a matchmaking ticket and waits for the
	// acknowledgement.
	RemoveMatchmaker(ctx context.Context, ticket string) error

	// FollowUsers subscribes to status updates of the given users and replies
	// with the presences of those currently online.
	FollowUsers(ctx context.Context, userIDs, usernames []string) (*rtapi.Status, error)

	// UnfollowUsers stops status updates from the given users and waits for the
	// acknowledgement.
	UnfollowUsers(ctx context.Context, userIDs []string) error

	// UpdateStatus publishes the caller's status to its followers. An empty
	// status appears offline. It does not wait for a reply.
	UpdateStatus(ctx context.Context, status string) error

	// RPC invokes a server function and replies with its rpc payload.
	RPC(ctx context.Context, id, payload string) (*rtapi.Rpc, error)

	// Ping round-trips a ping. Any non-error reply counts as a pong.
	Ping(ctx context.Context) error

	// CreateParty creates a party led by the caller and replies with the party.
	CreateParty(ctx context.Context, open bool, maxSize int) (*rtapi.Party, error)

	// JoinParty joins an open party, or files a join request for a closed one,
	// and waits for the acknowledgement.
	JoinParty(ctx context.Context, partyID string) error

	// LeaveParty leaves the party and waits for the acknowledgement.
	LeaveParty(ctx context.Context, partyID string) error

	// CloseParty disbands the party. Only the leader may close it.
	CloseParty(ctx context.Context, partyID string) error

	// AcceptPartyMember admits a pending join request. Leader only.
	AcceptPartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error

	// PromotePartyMember hands leadership to another member. Leader only.
	PromotePartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error

	// RemovePartyMember kicks a member or rejects a join request. Leader only.
	RemovePartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error

	// ListPartyJoinRequests replies with the pending join requests of the party.
	ListPartyJoinRequests(ctx context.Context, partyID string) (*rtapi.PartyJoinRequest, error)

	// AddMatchmakerParty submits a matchmaking ticket for the whole party and
	// replies with the party ticket.
	AddMatchmakerParty(ctx context.Context, partyID string, req *rtapi.MatchmakerAdd) (*rtapi.PartyMatchmakerTicket, error)

	// RemoveMatchmakerParty cancels a party matchmaking ticket and waits for the
	// acknowledgement.
	RemoveMatchmakerParty(ctx context.Context, partyID, ticket string) error

	// SendPartyData sends data to every party member. It does not wait for a
	// reply.
	SendPartyData(ctx context.Context, partyID string, opCode int64, data []byte) error

	// The On* methods replace the single callback for their event. Callbacks
	// run on the goroutine calling Tick and may issue new calls, but a
	// callback that waits for a reply blocks its own dispatch: run such
	// calls in a new goroutine. Passing nil removes the callback.

	// OnConnected is called once the transport reports the connection open.
	OnConnected(fn func())

	// OnClosed is called when the connection closes, after pending calls have
	// failed.
	OnClosed(fn func())

	// OnReceivedChannelMessage receives messages posted to joined channels.
	OnReceivedChannelMessage(fn func(*rtapi.ChannelMessage))

	// OnReceivedChannelPresence receives joins and leaves in joined channels.
	OnReceivedChannelPresence(fn func(*rtapi.ChannelPresenceEvent))

	// OnReceivedStatusPresence receives status changes of followed users.
	OnReceivedStatusPresence(fn func(*rtapi.StatusPresenceEvent))

	// OnReceivedStreamPresence receives presence changes on server streams.
	OnReceivedStreamPresence(fn func(*rtapi.StreamPresenceEvent))

	// OnReceivedStreamState receives data published on server streams.
	OnReceivedStreamState(fn func(*rtapi.StreamData))

	// OnReceivedMatchPresence receives joins and leaves in joined matches.
	OnReceivedMatchPresence(fn func(*rtapi.MatchPresenceEvent))

	// OnReceivedMatchState receives state sent by other match participants.
	OnReceivedMatchState(fn func(*rtapi.MatchData))

	// OnReceivedMatchmakerMatched receives the result of a matchmaking ticket.
	OnReceivedMatchmakerMatched(fn func(*rtapi.MatchmakerMatched))

	// OnReceivedNotification receives in-app notifications.
	OnReceivedNotification(fn func(*rtapi.Notifications))

	// OnReceivedParty receives the party state after joining one.
	OnReceivedParty(fn func(*rtapi.Party))

	// OnReceivedPartyPresence receives joins and leaves in the party.
	OnReceivedPartyPresence(fn func(*rtapi.PartyPresenceEvent))

	// OnReceivedPartyData receives data sent by other party members.
	OnReceivedPartyData(fn func(*rtapi.PartyData))

	// OnReceivedPartyClose is called when the party is disbanded.
	OnReceivedPartyClose(fn func(*rtapi.PartyClose))

	// OnReceivedPartyLeader receives leadership changes.
	OnReceivedPartyLeader(fn func(*rtapi.PartyLeader))

	// OnReceivedPartyJoinRequest receives join requests, for party leaders.
	OnReceivedPartyJoinRequest(fn func(*rtapi.PartyJoinRequest))

	// OnReceivedError receives server errors that answer no pending call.
	OnReceivedError(fn func(*rtapi.Error))
}
