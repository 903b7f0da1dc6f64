package websocket

import (
	"github.com/luciancaetano/rtsock/rtapi"
)

// register stores fn as the single handler for kind, replacing any previous
// one. A nil fn clears the slot.
func register[T any](s *Socket, kind rtapi.Kind, fn func(*T), payload func(*rtapi.Envelope) *T) {
	if fn == nil {
		s.handlers.Delete(kind)
		return
	}
	s.handlers.Store(kind, func(env *rtapi.Envelope) {
		fn(payload(env))
	})
}

func (s *Socket) setHook(h hook, fn func()) {
	if fn == nil {
		s.hooks.Delete(h)
		return
	}
	s.hooks.Store(h, fn)
}

// OnConnected sets the callback run after the transport reports a connection.
func (s *Socket) OnConnected(fn func()) { s.setHook(hookConnected, fn) }

// OnClosed sets the callback run after the transport closes, whether the
// socket was closed locally or by the server.
func (s *Socket) OnClosed(fn func()) { s.setHook(hookClosed, fn) }

// OnReceivedChannelMessage receives messages posted to joined channels.
func (s *Socket) OnReceivedChannelMessage(fn func(*rtapi.ChannelMessage)) {
	register(s, rtapi.KindChannelMessage, fn, func(e *rtapi.Envelope) *rtapi.ChannelMessage { return e.ChannelMessage })
}

// OnReceivedChannelPresence receives joins and leaves in joined channels.
func (s *Socket) OnReceivedChannelPresence(fn func(*rtapi.ChannelPresenceEvent)) {
	register(s, rtapi.KindChannelPresenceEvent, fn, func(e *rtapi.Envelope) *rtapi.ChannelPresenceEvent { return e.ChannelPresenceEvent })
}

// OnReceivedStatusPresence receives status changes of followed users.
func (s *Socket) OnReceivedStatusPresence(fn func(*rtapi.StatusPresenceEvent)) {
	register(s, rtapi.KindStatusPresenceEvent, fn, func(e *rtapi.Envelope) *rtapi.StatusPresenceEvent { return e.StatusPresenceEvent })
}

// OnReceivedStreamPresence receives presence changes on server streams.
func (s *Socket) OnReceivedStreamPresence(fn func(*rtapi.StreamPresenceEvent)) {
	register(s, rtapi.KindStreamPresenceEvent, fn, func(e *rtapi.Envelope) *rtapi.StreamPresenceEvent { return e.StreamPresenceEvent })
}

// OnReceivedStreamState receives data published on server streams.
func (s *Socket) OnReceivedStreamState(fn func(*rtapi.StreamData)) {
	register(s, rtapi.KindStreamData, fn, func(e *rtapi.Envelope) *rtapi.StreamData { return e.StreamData })
}

// OnReceivedMatchPresence receives joins and leaves in joined matches.
func (s *Socket) OnReceivedMatchPresence(fn func(*rtapi.MatchPresenceEvent)) {
	register(s, rtapi.KindMatchPresenceEvent, fn, func(e *rtapi.Envelope) *rtapi.MatchPresenceEvent { return e.MatchPresenceEvent })
}

// OnReceivedMatchState receives state sent by other match participants.
func (s *Socket) OnReceivedMatchState(fn func(*rtapi.MatchData)) {
	register(s, rtapi.KindMatchData, fn, func(e *rtapi.Envelope) *rtapi.MatchData { return e.MatchData })
}

// OnReceivedMatchmakerMatched receives the result of a matchmaking ticket.
func (s *Socket) OnReceivedMatchmakerMatched(fn func(*rtapi.MatchmakerMatched)) {
	register(s, rtapi.KindMatchmakerMatched, fn, func(e *rtapi.Envelope) *rtapi.MatchmakerMatched { return e.MatchmakerMatched })
}

// OnReceivedNotification receives in-app notifications.
func (s *Socket) OnReceivedNotification(fn func(*rtapi.Notifications)) {
	register(s, rtapi.KindNotifications, fn, func(e *rtapi.Envelope) *rtapi.Notifications { return e.Notifications })
}

// OnReceivedParty receives the party state after joining one.
func (s *Socket) OnReceivedParty(fn func(*rtapi.Party)) {
	register(s, rtapi.KindParty, fn, func(e *rtapi.Envelope) *rtapi.Party { return e.Party })
}

// OnReceivedPartyPresence receives joins and leaves in the party.
func (s *Socket) OnReceivedPartyPresence(fn func(*rtapi.PartyPresenceEvent)) {
	register(s, rtapi.KindPartyPresenceEvent, fn, func(e *rtapi.Envelope) *rtapi.PartyPresenceEvent { return e.PartyPresenceEvent })
}

// OnReceivedPartyData receives data sent by other party members.
func (s *Socket) OnReceivedPartyData(fn func(*rtapi.PartyData)) {
	register(s, rtapi.KindPartyData, fn, func(e *rtapi.Envelope) *rtapi.PartyData { return e.PartyData })
}

// OnReceivedPartyClose is called when the party is disbanded.
func (s *Socket) OnReceivedPartyClose(fn func(*rtapi.PartyClose)) {
	register(s, rtapi.KindPartyClose, fn, func(e *rtapi.Envelope) *rtapi.PartyClose { return e.PartyClose })
}

// OnReceivedPartyLeader receives leadership changes.
func (s *Socket) OnReceivedPartyLeader(fn func(*rtapi.PartyLeader)) {
	register(s, rtapi.KindPartyLeader, fn, func(e *rtapi.Envelope) *rtapi.PartyLeader { return e.PartyLeader })
}

// OnReceivedPartyJoinRequest receives join requests, for party leaders.
func (s *Socket) OnReceivedPartyJoinRequest(fn func(*rtapi.PartyJoinRequest)) {
	register(s, rtapi.KindPartyJoinRequest, fn, func(e *rtapi.Envelope) *rtapi.PartyJoinRequest { return e.PartyJoinRequest })
}

// OnReceivedError sets the handler for server errors that are not a reply to
// a pending call.
func (s *Socket) OnReceivedError(fn func(*rtapi.Error)) {
	register(s, rtapi.KindError, fn, func(e *rtapi.Envelope) *rtapi.Error { return e.Error })
}
