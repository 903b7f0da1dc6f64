package rtapi

// Kind names a payload variant by its wire field.
type Kind string

const (
	KindNone Kind = ""

	KindChannel              Kind = "channel"
	KindChannelJoin          Kind = "channel_join"
	KindChannelLeave         Kind = "channel_leave"
	KindChannelMessage       Kind = "channel_message"
	KindChannelMessageAck    Kind = "channel_message_ack"
	KindChannelMessageSend   Kind = "channel_message_send"
	KindChannelMessageUpdate Kind = "channel_message_update"
	KindChannelMessageRemove Kind = "channel_message_remove"
	KindChannelPresenceEvent Kind = "channel_presence_event"

	KindError Kind = "error"

	KindMatch              Kind = "match"
	KindMatchCreate        Kind = "match_create"
	KindMatchData          Kind = "match_data"
	KindMatchDataSend      Kind = "match_data_send"
	KindMatchJoin          Kind = "match_join"
	KindMatchLeave         Kind = "match_leave"
	KindMatchPresenceEvent Kind = "match_presence_event"

	KindMatchmakerAdd     Kind = "matchmaker_add"
	KindMatchmakerMatched Kind = "matchmaker_matched"
	KindMatchmakerRemove  Kind = "matchmaker_remove"
	KindMatchmakerTicket  Kind = "matchmaker_ticket"

	KindNotifications Kind = "notifications"
	KindRpc           Kind = "rpc"

	KindStatus              Kind = "status"
	KindStatusFollow        Kind = "status_follow"
	KindStatusPresenceEvent Kind = "status_presence_event"
	KindStatusUnfollow      Kind = "status_unfollow"
	KindStatusUpdate        Kind = "status_update"

	KindStreamData          Kind = "stream_data"
	KindStreamPresenceEvent Kind = "stream_presence_event"

	KindPing Kind = "ping"
	KindPong Kind = "pong"

	KindParty                 Kind = "party"
	KindPartyCreate           Kind = "party_create"
	KindPartyJoin             Kind = "party_join"
	KindPartyLeave            Kind = "party_leave"
	KindPartyPromote          Kind = "party_promote"
	KindPartyLeader           Kind = "party_leader"
	KindPartyAccept           Kind = "party_accept"
	KindPartyRemove           Kind = "party_remove"
	KindPartyClose            Kind = "party_close"
	KindPartyJoinRequestList  Kind = "party_join_request_list"
	KindPartyJoinRequest      Kind = "party_join_request"
	KindPartyMatchmakerAdd    Kind = "party_matchmaker_add"
	KindPartyMatchmakerRemove Kind = "party_matchmaker_remove"
	KindPartyMatchmakerTicket Kind = "party_matchmaker_ticket"
	KindPartyData             Kind = "party_data"
	KindPartyDataSend         Kind = "party_data_send"
	KindPartyPresenceEvent    Kind = "party_presence_event"
)

type variant struct {
	kind Kind
	push bool
	set  func(e *Envelope) bool
}

// variants is in Envelope field order; PushKind relies on it for a
// deterministic pick when a frame carries more than one push payload.
var variants = []variant{
	{KindChannel, false, func(e *Envelope) bool { return e.Channel != nil }},
	{KindChannelJoin, false, func(e *Envelope) bool { return e.ChannelJoin != nil }},
	{KindChannelLeave, false, func(e *Envelope) bool { return e.ChannelLeave != nil }},
	{KindChannelMessage, true, func(e *Envelope) bool { return e.ChannelMessage != nil }},
	{KindChannelMessageAck, false, func(e *Envelope) bool { return e.ChannelMessageAck != nil }},
	{KindChannelMessageSend, false, func(e *Envelope) bool { return e.ChannelMessageSend != nil }},
	{KindChannelMessageUpdate, false, func(e *Envelope) bool { return e.ChannelMessageUpdate != nil }},
	{KindChannelMessageRemove, false, func(e *Envelope) bool { return e.ChannelMessageRemove != nil }},
	{KindChannelPresenceEvent, true, func(e *Envelope) bool { return e.ChannelPresenceEvent != nil }},
	{KindError, true, func(e *Envelope) bool { return e.Error != nil }},
	{KindMatch, false, func(e *Envelope) bool { return e.Match != nil }},
	{KindMatchCreate, false, func(e *Envelope) bool { return e.MatchCreate != nil }},
	{KindMatchData, true, func(e *Envelope) bool { return e.MatchData != nil }},
	{KindMatchDataSend, false, func(e *Envelope) bool { return e.MatchDataSend != nil }},
	{KindMatchJoin, false, func(e *Envelope) bool { return e.MatchJoin != nil }},
	{KindMatchLeave, false, func(e *Envelope) bool { return e.MatchLeave != nil }},
	{KindMatchPresenceEvent, true, func(e *Envelope) bool { return e.MatchPresenceEvent != nil }},
	{KindMatchmakerAdd, false, func(e *Envelope) bool { return e.MatchmakerAdd != nil }},
	{KindMatchmakerMatched, true, func(e *Envelope) bool { return e.MatchmakerMatched != nil }},
	{KindMatchmakerRemove, false, func(e *Envelope) bool { return e.MatchmakerRemove != nil }},
	{KindMatchmakerTicket, false, func(e *Envelope) bool { return e.MatchmakerTicket != nil }},
	{KindNotifications, true, func(e *Envelope) bool { return e.Notifications != nil }},
	{KindRpc, false, func(e *Envelope) bool { return e.Rpc != nil }},
	{KindStatus, false, func(e *Envelope) bool { return e.Status != nil }},
	{KindStatusFollow, false, func(e *Envelope) bool { return e.StatusFollow != nil }},
	{KindStatusPresenceEvent, true, func(e *Envelope) bool { return e.StatusPresenceEvent != nil }},
	{KindStatusUnfollow, false, func(e *Envelope) bool { return e.StatusUnfollow != nil }},
	{KindStatusUpdate, false, func(e *Envelope) bool { return e.StatusUpdate != nil }},
	{KindStreamData, true, func(e *Envelope) bool { return e.StreamData != nil }},
	{KindStreamPresenceEvent, true, func(e *Envelope) bool { return e.StreamPresenceEvent != nil }},
	{KindPing, false, func(e *Envelope) bool { return e.Ping != nil }},
	{KindPong, false, func(e *Envelope) bool { return e.Pong != nil }},
	{KindParty, true, func(e *Envelope) bool { return e.Party != nil }},
	{KindPartyCreate, false, func(e *Envelope) bool { return e.PartyCreate != nil }},
	{KindPartyJoin, false, func(e *Envelope) bool { return e.PartyJoin != nil }},
	{KindPartyLeave, false, func(e *Envelope) bool { return e.PartyLeave != nil }},
	{KindPartyPromote, false, func(e *Envelope) bool { return e.PartyPromote != nil }},
	{KindPartyLeader, true, func(e *Envelope) bool { return e.PartyLeader != nil }},
	{KindPartyAccept, false, func(e *Envelope) bool { return e.PartyAccept != nil }},
	{KindPartyRemove, false, func(e *Envelope) bool { return e.PartyRemove != nil }},
	{KindPartyClose, true, func(e *Envelope) bool { return e.PartyClose != nil }},
	{KindPartyJoinRequestList, false, func(e *Envelope) bool { return e.PartyJoinRequestList != nil }},
	{KindPartyJoinRequest, true, func(e *Envelope) bool { return e.PartyJoinRequest != nil }},
	{KindPartyMatchmakerAdd, false, func(e *Envelope) bool { return e.PartyMatchmakerAdd != nil }},
	{KindPartyMatchmakerRemove, false, func(e *Envelope) bool { return e.PartyMatchmakerRemove != nil }},
	{KindPartyMatchmakerTicket, false, func(e *Envelope) bool { return e.PartyMatchmakerTicket != nil }},
	{KindPartyData, true, func(e *Envelope) bool { return e.PartyData != nil }},
	{KindPartyDataSend, false, func(e *Envelope) bool { return e.PartyDataSend != nil }},
	{KindPartyPresenceEvent, true, func(e *Envelope) bool { return e.PartyPresenceEvent != nil }},
}

// IsPush reports whether k is a kind the server sends unsolicited.
func (k Kind) IsPush() bool {
	for _, v := range variants {
		if v.kind == k {
			return v.push
		}
	}
	return false
}

// PushKinds returns every push-event kind in a stable order.
func PushKinds() []Kind {
	var out []Kind
	for _, v := range variants {
		if v.push {
			out = append(out, v.kind)
		}
	}
	return out
}

// Kinds returns the populated payload variants in field order.
func (e *Envelope) Kinds() []Kind {
	if e == nil {
		return nil
	}
	var out []Kind
	for _, v := range variants {
		if v.set(e) {
			out = append(out, v.kind)
		}
	}
	return out
}

// PushKind returns the first populated push variant and how many push
// variants the envelope carries. A well-formed push frame has exactly one.
func (e *Envelope) PushKind() (Kind, int) {
	if e == nil {
		return KindNone, 0
	}
	first, n := KindNone, 0
	for _, v := range variants {
		if v.push && v.set(e) {
			if n == 0 {
				first = v.kind
			}
			n++
		}
	}
	return first, n
}
