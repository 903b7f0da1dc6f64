// Package rtapi holds the wire types exchanged over the realtime socket.
//
// Every frame is one JSON object, an Envelope, carrying an optional correlation
// id ("cid") and at most one populated payload field. Payload fields are
// pointers tagged omitempty so unset variants never reach the wire and decode
// back as nil.
package rtapi

// Envelope is one realtime frame.
type Envelope struct {
	CID string `json:"cid,omitempty"`

	Channel              *Channel              `json:"channel,omitempty"`
	ChannelJoin          *ChannelJoin          `json:"channel_join,omitempty"`
	ChannelLeave         *ChannelLeave         `json:"channel_leave,omitempty"`
	ChannelMessage       *ChannelMessage       `json:"channel_message,omitempty"`
	ChannelMessageAck    *ChannelMessageAck    `json:"channel_message_ack,omitempty"`
	ChannelMessageSend   *ChannelMessageSend   `json:"channel_message_send,omitempty"`
	ChannelMessageUpdate *ChannelMessageUpdate `json:"channel_message_update,omitempty"`
	ChannelMessageRemove *ChannelMessageRemove `json:"channel_message_remove,omitempty"`
	ChannelPresenceEvent *ChannelPresenceEvent `json:"channel_presence_event,omitempty"`

	Error *Error `json:"error,omitempty"`

	Match              *Match              `json:"match,omitempty"`
	MatchCreate        *MatchCreate        `json:"match_create,omitempty"`
	MatchData          *MatchData          `json:"match_data,omitempty"`
	MatchDataSend      *MatchDataSend      `json:"match_data_send,omitempty"`
	MatchJoin          *MatchJoin          `json:"match_join,omitempty"`
	MatchLeave         *MatchLeave         `json:"match_leave,omitempty"`
	MatchPresenceEvent *MatchPresenceEvent `json:"match_presence_event,omitempty"`

	MatchmakerAdd     *MatchmakerAdd     `json:"matchmaker_add,omitempty"`
	MatchmakerMatched *MatchmakerMatched `json:"matchmaker_matched,omitempty"`
	MatchmakerRemove  *MatchmakerRemove  `json:"matchmaker_remove,omitempty"`
	MatchmakerTicket  *MatchmakerTicket  `json:"matchmaker_ticket,omitempty"`

	Notifications *Notifications `json:"notifications,omitempty"`
	Rpc           *Rpc           `json:"rpc,omitempty"`

	Status              *Status              `json:"status,omitempty"`
	StatusFollow        *StatusFollow        `json:"status_follow,omitempty"`
	StatusPresenceEvent *StatusPresenceEvent `json:"status_presence_event,omitempty"`
	StatusUnfollow      *StatusUnfollow      `json:"status_unfollow,omitempty"`
	StatusUpdate        *StatusUpdate        `json:"status_update,omitempty"`

	StreamData          *StreamData          `json:"stream_data,omitempty"`
	StreamPresenceEvent *StreamPresenceEvent `json:"stream_presence_event,omitempty"`

	Ping *Ping `json:"ping,omitempty"`
	Pong *Pong `json:"pong,omitempty"`

	Party                 *Party                 `json:"party,omitempty"`
	PartyCreate           *PartyCreate           `json:"party_create,omitempty"`
	PartyJoin             *PartyJoin             `json:"party_join,omitempty"`
	PartyLeave            *PartyLeave            `json:"party_leave,omitempty"`
	PartyPromote          *PartyPromote          `json:"party_promote,omitempty"`
	PartyLeader           *PartyLeader           `json:"party_leader,omitempty"`
	PartyAccept           *PartyAccept           `json:"party_accept,omitempty"`
	PartyRemove           *PartyRemove           `json:"party_remove,omitempty"`
	PartyClose            *PartyClose            `json:"party_close,omitempty"`
	PartyJoinRequestList  *PartyJoinRequestList  `json:"party_join_request_list,omitempty"`
	PartyJoinRequest      *PartyJoinRequest      `json:"party_join_request,omitempty"`
	PartyMatchmakerAdd    *PartyMatchmakerAdd    `json:"party_matchmaker_add,omitempty"`
	PartyMatchmakerRemove *PartyMatchmakerRemove `json:"party_matchmaker_remove,omitempty"`
	PartyMatchmakerTicket *PartyMatchmakerTicket `json:"party_matchmaker_ticket,omitempty"`
	PartyData             *PartyData             `json:"party_data,omitempty"`
	PartyDataSend         *PartyDataSend         `json:"party_data_send,omitempty"`
	PartyPresenceEvent    *PartyPresenceEvent    `json:"party_presence_event,omitempty"`
}

// UserPresence identifies one session of one user on the server.
type UserPresence struct {
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Persistence bool   `json:"persistence,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ChannelType selects what kind of chat channel ChannelJoin targets.
type ChannelType int32

const (
	ChannelTypeUnspecified   ChannelType = 0
	ChannelTypeRoom          ChannelType = 1
	ChannelTypeDirectMessage ChannelType = 2
	ChannelTypeGroup         ChannelType = 3
)

// Channel is the reply to ChannelJoin.
type Channel struct {
	ID        string          `json:"id,omitempty"`
	Presences []*UserPresence `json:"presences,omitempty"`
	Self      *UserPresence   `json:"self,omitempty"`
	RoomName  string          `json:"room_name,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
	UserIDOne string          `json:"user_id_one,omitempty"`
	UserIDTwo string          `json:"user_id_two,omitempty"`
}

// ChannelJoin asks to join a room, group or direct-message channel.
// Persistence and Hidden are always sent: the server defaults an absent
// persistence flag to true.
type ChannelJoin struct {
	Target      string      `json:"target"`
	Type        ChannelType `json:"type"`
	Persistence bool        `json:"persistence"`
	Hidden      bool        `json:"hidden"`
}

type ChannelLeave struct {
	ChannelID string `json:"channel_id"`
}

// ChannelMessage is a chat message pushed to every member of a channel.
type ChannelMessage struct {
	ChannelID  string `json:"channel_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Code       int32  `json:"code,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Content    string `json:"content,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
	UpdateTime string `json:"update_time,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
	RoomName   string `json:"room_name,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	UserIDOne  string `json:"user_id_one,omitempty"`
	UserIDTwo  string `json:"user_id_two,omitempty"`
}

// ChannelMessageAck acknowledges a send, update or remove of a chat message.
type ChannelMessageAck struct {
	ChannelID  string `json:"channel_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Code       int32  `json:"code,omitempty"`
	Username   string `json:"username,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
	UpdateTime string `json:"update_time,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
	RoomName   string `json:"room_name,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	UserIDOne  string `json:"user_id_one,omitempty"`
	UserIDTwo  string `json:"user_id_two,omitempty"`
}

type ChannelMessageSend struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type ChannelMessageUpdate struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type ChannelMessageRemove struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type ChannelPresenceEvent struct {
	ChannelID string          `json:"channel_id,omitempty"`
	Joins     []*UserPresence `json:"joins,omitempty"`
	Leaves    []*UserPresence `json:"leaves,omitempty"`
	RoomName  string          `json:"room_name,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
	UserIDOne string          `json:"user_id_one,omitempty"`
	UserIDTwo string          `json:"user_id_two,omitempty"`
}

// Match is the reply to MatchCreate and MatchJoin.
type Match struct {
	MatchID       string          `json:"match_id,omitempty"`
	Authoritative bool            `json:"authoritative,omitempty"`
	Label         string          `json:"label,omitempty"`
	Size          int32           `json:"size,omitempty"`
	Presences     []*UserPresence `json:"presences,omitempty"`
	Self          *UserPresence   `json:"self,omitempty"`
}

type MatchCreate struct {
	Name string `json:"name,omitempty"`
}

// MatchData is realtime match state pushed by another match participant.
type MatchData struct {
	MatchID  string        `json:"match_id,omitempty"`
	Presence *UserPresence `json:"presence,omitempty"`
	OpCode   int64         `json:"op_code,string,omitempty"`
	Data     []byte        `json:"data,omitempty"`
	Reliable bool          `json:"reliable,omitempty"`
}

type MatchDataSend struct {
	MatchID   string          `json:"match_id"`
	OpCode    int64           `json:"op_code,string"`
	Data      []byte          `json:"data,omitempty"`
	Presences []*UserPresence `json:"presences,omitempty"`
	Reliable  bool            `json:"reliable,omitempty"`
}

// MatchJoin joins by MatchID or by a matchmaker Token; exactly one is set.
type MatchJoin struct {
	MatchID  string            `json:"match_id,omitempty"`
	Token    string            `json:"token,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type MatchLeave struct {
	MatchID string `json:"match_id"`
}

type MatchPresenceEvent struct {
	MatchID string          `json:"match_id,omitempty"`
	Joins   []*UserPresence `json:"joins,omitempty"`
	Leaves  []*UserPresence `json:"leaves,omitempty"`
}

// MatchmakerAdd describes a matchmaking request.
type MatchmakerAdd struct {
	MinCount          int32              `json:"min_count"`
	MaxCount          int32              `json:"max_count"`
	Query             string             `json:"query"`
	StringProperties  map[string]string  `json:"string_properties,omitempty"`
	NumericProperties map[string]float64 `json:"numeric_properties,omitempty"`
}

type MatchmakerUser struct {
	Presence          *UserPresence      `json:"presence,omitempty"`
	PartyID           string             `json:"party_id,omitempty"`
	StringProperties  map[string]string  `json:"string_properties,omitempty"`
	NumericProperties map[string]float64 `json:"numeric_properties,omitempty"`
}

// MatchmakerMatched is pushed when a ticket is matched. Either MatchID or
// Token is set, depending on whether the match is authoritative.
type MatchmakerMatched struct {
	Ticket  string            `json:"ticket,omitempty"`
	MatchID string            `json:"match_id,omitempty"`
	Token   string            `json:"token,omitempty"`
	Users   []*MatchmakerUser `json:"users,omitempty"`
	Self    *MatchmakerUser   `json:"self,omitempty"`
}

type MatchmakerRemove struct {
	Ticket string `json:"ticket"`
}

type MatchmakerTicket struct {
	Ticket string `json:"ticket,omitempty"`
}

type Notification struct {
	ID         string `json:"id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content,omitempty"`
	Code       int32  `json:"code,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
}

type Notifications struct {
	Notifications []*Notification `json:"notifications,omitempty"`
}

// Rpc is both the request and the reply of a server function call.
type Rpc struct {
	ID      string `json:"id,omitempty"`
	Payload string `json:"payload,omitempty"`
	HTTPKey string `json:"http_key,omitempty"`
}

type Status struct {
	Presences []*UserPresence `json:"presences,omitempty"`
}

type StatusFollow struct {
	UserIDs   []string `json:"user_ids,omitempty"`
	Usernames []string `json:"usernames,omitempty"`
}

type StatusPresenceEvent struct {
	Joins  []*UserPresence `json:"joins,omitempty"`
	Leaves []*UserPresence `json:"leaves,omitempty"`
}

type StatusUnfollow struct {
	UserIDs []string `json:"user_ids,omitempty"`
}

// StatusUpdate sets the status shown to followers. An empty status appears
// offline.
type StatusUpdate struct {
	Status string `json:"status,omitempty"`
}

// Stream identifies a server-side presence stream.
type Stream struct {
	Mode       int32  `json:"mode,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Subcontext string `json:"subcontext,omitempty"`
	Label      string `json:"label,omitempty"`
}

type StreamData struct {
	Stream   *Stream       `json:"stream,omitempty"`
	Sender   *UserPresence `json:"sender,omitempty"`
	Data     string        `json:"data,omitempty"`
	Reliable bool          `json:"reliable,omitempty"`
}

type StreamPresenceEvent struct {
	Stream *Stream         `json:"stream,omitempty"`
	Joins  []*UserPresence `json:"joins,omitempty"`
	Leaves []*UserPresence `json:"leaves,omitempty"`
}

type Ping struct{}

type Pong struct{}

// Party is the reply to PartyCreate and is pushed when a join is accepted.
type Party struct {
	PartyID   string          `json:"party_id,omitempty"`
	Open      bool            `json:"open,omitempty"`
	MaxSize   int32           `json:"max_size,omitempty"`
	Self      *UserPresence   `json:"self,omitempty"`
	Leader    *UserPresence   `json:"leader,omitempty"`
	Presences []*UserPresence `json:"presences,omitempty"`
}

type PartyCreate struct {
	Open    bool  `json:"open"`
	MaxSize int32 `json:"max_size"`
}

type PartyJoin struct {
	PartyID string `json:"party_id"`
}

type PartyLeave struct {
	PartyID string `json:"party_id"`
}

type PartyPromote struct {
	PartyID  string        `json:"party_id"`
	Presence *UserPresence `json:"presence,omitempty"`
}

type PartyLeader struct {
	PartyID  string        `json:"party_id,omitempty"`
	Presence *UserPresence `json:"presence,omitempty"`
}

type PartyAccept struct {
	PartyID  string        `json:"party_id"`
	Presence *UserPresence `json:"presence,omitempty"`
}

type PartyRemove struct {
	PartyID  string        `json:"party_id"`
	Presence *UserPresence `json:"presence,omitempty"`
}

type PartyClose struct {
	PartyID string `json:"party_id"`
}

type PartyJoinRequestList struct {
	PartyID string `json:"party_id"`
}

// PartyJoinRequest lists the presences waiting for the leader to accept them.
type PartyJoinRequest struct {
	PartyID   string          `json:"party_id,omitempty"`
	Presences []*UserPresence `json:"presences,omitempty"`
}

type PartyMatchmakerAdd struct {
	PartyID           string             `json:"party_id"`
	MinCount          int32              `json:"min_count"`
	MaxCount          int32              `json:"max_count"`
	Query             string             `json:"query"`
	StringProperties  map[string]string  `json:"string_properties,omitempty"`
	NumericProperties map[string]float64 `json:"numeric_properties,omitempty"`
}

type PartyMatchmakerRemove struct {
	PartyID string `json:"party_id"`
	Ticket  string `json:"ticket"`
}

type PartyMatchmakerTicket struct {
	PartyID string `json:"party_id,omitempty"`
	Ticket  string `json:"ticket,omitempty"`
}

type PartyData struct {
	PartyID  string        `json:"party_id,omitempty"`
	Presence *UserPresence `json:"presence,omitempty"`
	OpCode   int64         `json:"op_code,string,omitempty"`
	Data     []byte        `json:"data,omitempty"`
}

type PartyDataSend struct {
	PartyID string `json:"party_id"`
	OpCode  int64  `json:"op_code,string"`
	Data    []byte `json:"data,omitempty"`
}

type PartyPresenceEvent struct {
	PartyID string          `json:"party_id,omitempty"`
	Joins   []*UserPresence `json:"joins,omitempty"`
	Leaves  []*UserPresence `json:"leaves,omitempty"`
}
