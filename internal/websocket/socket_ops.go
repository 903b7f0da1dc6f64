package websocket

import (
	"context"

	"github.com/luciancaetano/rtsock/rtapi"
)

// ack runs a call whose reply carries no payload beyond an optional error.
func (s *Socket) ack(ctx context.Context, op string, env *rtapi.Envelope) error {
	_, err := s.call(ctx, op, env)
	return err
}

// CreateMatch creates a relayed match and replies with it. A named match
// is joined instead if it already exists.
func (s *Socket) CreateMatch(ctx context.Context, name string) (*rtapi.Match, error) {
	reply, err := s.call(ctx, "match_create", &rtapi.Envelope{
		MatchCreate: &rtapi.MatchCreate{Name: name},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindMatch, reply.Match)
}

// JoinMatch joins the match with the given id and replies with the match and
// its current presences.
func (s *Socket) JoinMatch(ctx context.Context, matchID string, metadata map[string]string) (*rtapi.Match, error) {
	reply, err := s.call(ctx, "match_join", &rtapi.Envelope{
		MatchJoin: &rtapi.MatchJoin{MatchID: matchID, Metadata: metadata},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindMatch, reply.Match)
}

// JoinMatchByToken joins the match a matchmaker ticket resolved to.
func (s *Socket) JoinMatchByToken(ctx context.Context, token string, metadata map[string]string) (*rtapi.Match, error) {
	reply, err := s.call(ctx, "match_join", &rtapi.Envelope{
		MatchJoin: &rtapi.MatchJoin{Token: token, Metadata: metadata},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindMatch, reply.Match)
}

// LeaveMatch leaves the match. It does not wait for a reply.
func (s *Socket) LeaveMatch(ctx context.Context, matchID string) error {
	return s.send(ctx, "match_leave", &rtapi.Envelope{
		MatchLeave: &rtapi.MatchLeave{MatchID: matchID},
	})
}

// SendMatchState sends state to the match. Nil presences means every
// participant.
func (s *Socket) SendMatchState(ctx context.Context, matchID string, opCode int64, state []byte, presences []*rtapi.UserPresence) error {
	return s.send(ctx, "match_data_send", &rtapi.Envelope{
		MatchDataSend: &rtapi.MatchDataSend{
			MatchID:   matchID,
			OpCode:    opCode,
			Data:      state,
			Presences: presences,
			Reliable:  true,
		},
	})
}

// JoinChat joins a room, group or direct channel and replies with the channel.
func (s *Socket) JoinChat(ctx context.Context, target string, channelType rtapi.ChannelType, persistence, hidden bool) (*rtapi.Channel, error) {
	reply, err := s.call(ctx, "channel_join", &rtapi.Envelope{
		ChannelJoin: &rtapi.ChannelJoin{
			Target:      target,
			Type:        channelType,
			Persistence: persistence,
			Hidden:      hidden,
		},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindChannel, reply.Channel)
}

// LeaveChat leaves the channel and waits for the server's acknowledgement.
func (s *Socket) LeaveChat(ctx context.Context, channelID string) error {
	return s.ack(ctx, "channel_leave", &rtapi.Envelope{
		ChannelLeave: &rtapi.ChannelLeave{ChannelID: channelID},
	})
}

// WriteChatMessage sends content, which must be a JSON object, to the channel
// and replies with the message ack.
func (s *Socket) WriteChatMessage(ctx context.Context, channelID, content string) (*rtapi.ChannelMessageAck, error) {
	reply, err := s.call(ctx, "channel_message_send", &rtapi.Envelope{
		ChannelMessageSend: &rtapi.ChannelMessageSend{ChannelID: channelID, Content: content},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindChannelMessageAck, reply.ChannelMessageAck)
}

// UpdateChatMessage replaces the content of a message and replies with the
// message ack.
func (s *Socket) UpdateChatMessage(ctx context.Context, channelID, messageID, content string) (*rtapi.ChannelMessageAck, error) {
	reply, err := s.call(ctx, "channel_message_update", &rtapi.Envelope{
		ChannelMessageUpdate: &rtapi.ChannelMessageUpdate{ChannelID: channelID, MessageID: messageID, Content: content},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindChannelMessageAck, reply.ChannelMessageAck)
}

// RemoveChatMessage deletes a message and replies with the message ack.
func (s *Socket) RemoveChatMessage(ctx context.Context, channelID, messageID string) (*rtapi.ChannelMessageAck, error) {
	reply, err := s.call(ctx, "channel_message_remove", &rtapi.Envelope{
		ChannelMessageRemove: &rtapi.ChannelMessageRemove{ChannelID: channelID, MessageID: messageID},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindChannelMessageAck, reply.ChannelMessageAck)
}

// AddMatchmaker submits a matchmaking ticket and replies with its ticket id. A
// nil request uses the server defaults.
func (s *Socket) AddMatchmaker(ctx context.Context, req *rtapi.MatchmakerAdd) (*rtapi.MatchmakerTicket, error) {
	if req == nil {
		req = &rtapi.MatchmakerAdd{}
	}
	reply, err := s.call(ctx, "matchmaker_add", &rtapi.Envelope{MatchmakerAdd: req})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindMatchmakerTicket, reply.MatchmakerTicket)
}

// RemoveMatchmaker cancels a matchmaking ticket and waits for the
// acknowledgement.
func (s *Socket) RemoveMatchmaker(ctx context.Context, ticket string) error {
	return s.ack(ctx, "matchmaker_remove", &rtapi.Envelope{
		MatchmakerRemove: &rtapi.MatchmakerRemove{Ticket: ticket},
	})
}

// FollowUsers subscribes to status updates of the given users and returns
// the presences of those currently online.
func (s *Socket) FollowUsers(ctx context.Context, userIDs, usernames []string) (*rtapi.Status, error) {
	reply, err := s.call(ctx, "status_follow", &rtapi.Envelope{
		StatusFollow: &rtapi.StatusFollow{UserIDs: userIDs, Usernames: usernames},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindStatus, reply.Status)
}

// UnfollowUsers stops status updates from the given users and waits for the
// acknowledgement.
func (s *Socket) UnfollowUsers(ctx context.Context, userIDs []string) error {
	return s.ack(ctx, "status_unfollow", &rtapi.Envelope{
		StatusUnfollow: &rtapi.StatusUnfollow{UserIDs: userIDs},
	})
}

// UpdateStatus publishes the caller's status to its followers. An empty status
// appears offline. It does not wait for a reply.
func (s *Socket) UpdateStatus(ctx context.Context, status string) error {
	return s.send(ctx, "status_update", &rtapi.Envelope{
		StatusUpdate: &rtapi.StatusUpdate{Status: status},
	})
}

// RPC invokes a server function and replies with its rpc payload.
func (s *Socket) RPC(ctx context.Context, id, payload string) (*rtapi.Rpc, error) {
	reply, err := s.call(ctx, "rpc", &rtapi.Envelope{
		Rpc: &rtapi.Rpc{ID: id, Payload: payload},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindRpc, reply.Rpc)
}

// Ping round-trips a ping. Any non-error reply counts as a pong.
func (s *Socket) Ping(ctx context.Context) error {
	return s.ack(ctx, "ping", &rtapi.Envelope{Ping: &rtapi.Ping{}})
}

// CreateParty creates a party led by the caller and replies with the party.
func (s *Socket) CreateParty(ctx context.Context, open bool, maxSize int) (*rtapi.Party, error) {
	reply, err := s.call(ctx, "party_create", &rtapi.Envelope{
		PartyCreate: &rtapi.PartyCreate{Open: open, MaxSize: int32(maxSize)},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindParty, reply.Party)
}

// JoinParty joins an open party, or files a join request for a closed one, and
// waits for the acknowledgement.
func (s *Socket) JoinParty(ctx context.Context, partyID string) error {
	return s.ack(ctx, "party_join", &rtapi.Envelope{
		PartyJoin: &rtapi.PartyJoin{PartyID: partyID},
	})
}

// LeaveParty leaves the party and waits for the acknowledgement.
func (s *Socket) LeaveParty(ctx context.Context, partyID string) error {
	return s.ack(ctx, "party_leave", &rtapi.Envelope{
		PartyLeave: &rtapi.PartyLeave{PartyID: partyID},
	})
}

// CloseParty disbands the party. Only the leader may close it.
func (s *Socket) CloseParty(ctx context.Context, partyID string) error {
	return s.ack(ctx, "party_close", &rtapi.Envelope{
		PartyClose: &rtapi.PartyClose{PartyID: partyID},
	})
}

// AcceptPartyMember admits a pending join request. Leader only.
func (s *Socket) AcceptPartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error {
	return s.ack(ctx, "party_accept", &rtapi.Envelope{
		PartyAccept: &rtapi.PartyAccept{PartyID: partyID, Presence: presence},
	})
}

// PromotePartyMember hands leadership to another member. Leader only.
func (s *Socket) PromotePartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error {
	return s.ack(ctx, "party_promote", &rtapi.Envelope{
		PartyPromote: &rtapi.PartyPromote{PartyID: partyID, Presence: presence},
	})
}

// RemovePartyMember kicks a member or rejects a join request. Leader only.
func (s *Socket) RemovePartyMember(ctx context.Context, partyID string, presence *rtapi.UserPresence) error {
	return s.ack(ctx, "party_remove", &rtapi.Envelope{
		PartyRemove: &rtapi.PartyRemove{PartyID: partyID, Presence: presence},
	})
}

// ListPartyJoinRequests replies with the pending join requests of the party.
func (s *Socket) ListPartyJoinRequests(ctx context.Context, partyID string) (*rtapi.PartyJoinRequest, error) {
	reply, err := s.call(ctx, "party_join_request_list", &rtapi.Envelope{
		PartyJoinRequestList: &rtapi.PartyJoinRequestList{PartyID: partyID},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindPartyJoinRequest, reply.PartyJoinRequest)
}

// AddMatchmakerParty submits a matchmaking ticket for the whole party and
// replies with the party ticket.
func (s *Socket) AddMatchmakerParty(ctx context.Context, partyID string, req *rtapi.MatchmakerAdd) (*rtapi.PartyMatchmakerTicket, error) {
	if req == nil {
		req = &rtapi.MatchmakerAdd{}
	}
	reply, err := s.call(ctx, "party_matchmaker_add", &rtapi.Envelope{
		PartyMatchmakerAdd: &rtapi.PartyMatchmakerAdd{
			PartyID:           partyID,
			MinCount:          req.MinCount,
			MaxCount:          req.MaxCount,
			Query:             req.Query,
			StringProperties:  req.StringProperties,
			NumericProperties: req.NumericProperties,
		},
	})
	if err != nil {
		return nil, err
	}
	return expect(reply, rtapi.KindPartyMatchmakerTicket, reply.PartyMatchmakerTicket)
}

// RemoveMatchmakerParty cancels a party matchmaking ticket and waits for the
// acknowledgement.
func (s *Socket) RemoveMatchmakerParty(ctx context.Context, partyID, ticket string) error {
	return s.ack(ctx, "party_matchmaker_remove", &rtapi.Envelope{
		PartyMatchmakerRemove: &rtapi.PartyMatchmakerRemove{PartyID: partyID, Ticket: ticket},
	})
}

// SendPartyData sends data to every party member. It does not wait for a
// reply.
func (s *Socket) SendPartyData(ctx context.Context, partyID string, opCode int64, data []byte) error {
	return s.send(ctx, "party_data_send", &rtapi.Envelope{
		PartyDataSend: &rtapi.PartyDataSend{PartyID: partyID, OpCode: opCode, Data: data},
	})
}
