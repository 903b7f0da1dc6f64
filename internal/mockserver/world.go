package mockserver

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luciancaetano/rtsock/rtapi"
)

// delivery is one envelope bound for one client. Handlers collect
// deliveries under the world lock; the server sends them after unlocking.
type delivery struct {
	to  *Session
	env *rtapi.Envelope
}

type match struct {
	id      string
	members []*Session
}

type channel struct {
	id          string
	kind        rtapi.ChannelType
	target      string
	persistence bool
	members     []*Session
	hidden      map[string]bool
}

type party struct {
	id       string
	open     bool
	maxSize  int
	leader   *Session
	members  []*Session
	requests []*Session
}

type ticket struct {
	id      string
	owner   *Session
	partyID string
	query   string
	min     int
	max     int
	props   map[string]string
	numeric map[string]float64
}

// world is the realtime state shared by every connection.
type world struct {
	mu       sync.Mutex
	users    map[string][]*Session // user id to sessions
	matches  map[string]*match
	tokens   map[string]string // matchmaker token to match id
	channels map[string]*channel
	parties  map[string]*party
	tickets  []*ticket
	follows  map[string][]*Session // followed user id to followers
	now      func() time.Time
}

func newWorld() *world {
	return &world{
		users:    make(map[string][]*Session),
		matches:  make(map[string]*match),
		tokens:   make(map[string]string),
		channels: make(map[string]*channel),
		parties:  make(map[string]*party),
		follows:  make(map[string][]*Session),
		now:      time.Now,
	}
}

type handlerFunc func(w *world, c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery)

var handlers = map[rtapi.Kind]handlerFunc{
	rtapi.KindPing:                  (*world).ping,
	rtapi.KindMatchCreate:           (*world).matchCreate,
	rtapi.KindMatchJoin:             (*world).matchJoin,
	rtapi.KindMatchLeave:            (*world).matchLeave,
	rtapi.KindMatchDataSend:         (*world).matchDataSend,
	rtapi.KindChannelJoin:           (*world).channelJoin,
	rtapi.KindChannelLeave:          (*world).channelLeave,
	rtapi.KindChannelMessageSend:    (*world).channelMessageSend,
	rtapi.KindChannelMessageUpdate:  (*world).channelMessageUpdate,
	rtapi.KindChannelMessageRemove:  (*world).channelMessageRemove,
	rtapi.KindMatchmakerAdd:         (*world).matchmakerAdd,
	rtapi.KindMatchmakerRemove:      (*world).matchmakerRemove,
	rtapi.KindStatusFollow:          (*world).statusFollow,
	rtapi.KindStatusUnfollow:        (*world).statusUnfollow,
	rtapi.KindStatusUpdate:          (*world).statusUpdate,
	rtapi.KindPartyCreate:           (*world).partyCreate,
	rtapi.KindPartyJoin:             (*world).partyJoin,
	rtapi.KindPartyLeave:            (*world).partyLeave,
	rtapi.KindPartyPromote:          (*world).partyPromote,
	rtapi.KindPartyAccept:           (*world).partyAccept,
	rtapi.KindPartyRemove:           (*world).partyRemove,
	rtapi.KindPartyClose:            (*world).partyClose,
	rtapi.KindPartyJoinRequestList:  (*world).partyJoinRequestList,
	rtapi.KindPartyMatchmakerAdd:    (*world).partyMatchmakerAdd,
	rtapi.KindPartyMatchmakerRemove: (*world).partyMatchmakerRemove,
	rtapi.KindPartyDataSend:         (*world).partyDataSend,
}

// apply runs the handler for kind under the world lock.
func (w *world) apply(kind rtapi.Kind, c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	h, ok := handlers[kind]
	if !ok {
		return errorEnvelope(rtapi.ErrorUnrecognizedPayload, "Unrecognized message."), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return h(w, c, env)
}

func errorEnvelope(code int32, message string) *rtapi.Envelope {
	return &rtapi.Envelope{Error: &rtapi.Error{Code: code, Message: message}}
}

func badInput(message string) *rtapi.Envelope {
	return errorEnvelope(rtapi.ErrorBadInput, message)
}

func ack() *rtapi.Envelope {
	return &rtapi.Envelope{}
}

// fanout addresses env to every client in to except skip.
func fanout(to []*Session, skip *Session, env *rtapi.Envelope) []delivery {
	out := make([]delivery, 0, len(to))
	for _, c := range to {
		if c != skip {
			out = append(out, delivery{to: c, env: env})
		}
	}
	return out
}

func presences(clients []*Session, skip *Session) []*rtapi.UserPresence {
	var out []*rtapi.UserPresence
	for _, c := range clients {
		if c != skip {
			out = append(out, c.presence())
		}
	}
	return out
}

func without(clients []*Session, c *Session) ([]*Session, bool) {
	for i, m := range clients {
		if m == c {
			return append(clients[:i:i], clients[i+1:]...), true
		}
	}
	return clients, false
}

func contains(clients []*Session, c *Session) bool {
	for _, m := range clients {
		if m == c {
			return true
		}
	}
	return false
}

// find returns the client p identifies among clients, by session id first.
func find(clients []*Session, p *rtapi.UserPresence) *Session {
	if p == nil {
		return nil
	}
	for _, c := range clients {
		if p.SessionID != "" && c.id == p.SessionID {
			return c
		}
	}
	for _, c := range clients {
		if p.SessionID == "" && p.UserID != "" && c.userID == p.UserID {
			return c
		}
	}
	return nil
}

// connect registers c and tells followers it came online.
func (w *world) connect(c *Session) []delivery {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.users[c.userID] = append(w.users[c.userID], c)
	if !c.online {
		return nil
	}
	return w.statusEvent(c, true)
}

// disconnect removes c from everything it joined.
func (w *world) disconnect(c *Session) []delivery {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []delivery
	for _, m := range w.matches {
		if contains(m.members, c) {
			_, d := w.matchLeave(c, &rtapi.Envelope{MatchLeave: &rtapi.MatchLeave{MatchID: m.id}})
			out = append(out, d...)
		}
	}
	for _, ch := range w.channels {
		if contains(ch.members, c) {
			_, d := w.channelLeave(c, &rtapi.Envelope{ChannelLeave: &rtapi.ChannelLeave{ChannelID: ch.id}})
			out = append(out, d...)
		}
	}
	for _, p := range w.parties {
		if contains(p.members, c) {
			_, d := w.partyLeave(c, &rtapi.Envelope{PartyLeave: &rtapi.PartyLeave{PartyID: p.id}})
			out = append(out, d...)
		} else {
			p.requests, _ = without(p.requests, c)
		}
	}
	kept := w.tickets[:0]
	for _, t := range w.tickets {
		if t.owner != c {
			kept = append(kept, t)
		}
	}
	w.tickets = kept
	for user, followers := range w.follows {
		w.follows[user], _ = without(followers, c)
	}
	if c.online {
		out = append(out, w.statusEvent(c, false)...)
	}
	w.users[c.userID], _ = without(w.users[c.userID], c)
	if len(w.users[c.userID]) == 0 {
		delete(w.users, c.userID)
	}
	return out
}

// notify addresses env to every session of userID.
func (w *world) notify(userID string, env *rtapi.Envelope) []delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fanout(w.users[userID], nil, env)
}

func (w *world) ping(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	return &rtapi.Envelope{Pong: &rtapi.Pong{}}, nil
}

func (w *world) matchCreate(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	id := uuid.New().String() + "."
	if name := env.MatchCreate.Name; name != "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String() + "."
		if m, ok := w.matches[id]; ok {
			return w.joinMatch(c, m)
		}
	}
	m := &match{id: id}
	w.matches[id] = m
	return w.joinMatch(c, m)
}

func (w *world) matchJoin(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.MatchJoin
	id := req.MatchID
	if req.Token != "" {
		var ok bool
		if id, ok = w.tokens[req.Token]; !ok {
			return badInput("Invalid matchmaker token."), nil
		}
	}
	m, ok := w.matches[id]
	if !ok {
		return errorEnvelope(rtapi.ErrorMatchNotFound, "Match not found"), nil
	}
	return w.joinMatch(c, m)
}

func (w *world) joinMatch(c *Session, m *match) (*rtapi.Envelope, []delivery) {
	var out []delivery
	if !contains(m.members, c) {
		out = fanout(m.members, c, &rtapi.Envelope{MatchPresenceEvent: &rtapi.MatchPresenceEvent{
			MatchID: m.id,
			Joins:   []*rtapi.UserPresence{c.presence()},
		}})
		m.members = append(m.members, c)
	}
	return &rtapi.Envelope{Match: &rtapi.Match{
		MatchID:   m.id,
		Size:      int32(len(m.members)),
		Presences: presences(m.members, c),
		Self:      c.presence(),
	}}, out
}

func (w *world) matchLeave(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	m, ok := w.matches[env.MatchLeave.MatchID]
	if !ok {
		return nil, nil
	}
	var left bool
	if m.members, left = without(m.members, c); !left {
		return nil, nil
	}
	if len(m.members) == 0 {
		delete(w.matches, m.id)
		return nil, nil
	}
	return nil, fanout(m.members, nil, &rtapi.Envelope{MatchPresenceEvent: &rtapi.MatchPresenceEvent{
		MatchID: m.id,
		Leaves:  []*rtapi.UserPresence{c.presence()},
	}})
}

func (w *world) matchDataSend(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.MatchDataSend
	m, ok := w.matches[req.MatchID]
	if !ok || !contains(m.members, c) {
		return nil, nil
	}
	targets := m.members
	if len(req.Presences) > 0 {
		targets = nil
		for _, p := range req.Presences {
			if t := find(m.members, p); t != nil {
				targets = append(targets, t)
			}
		}
	}
	return nil, fanout(targets, c, &rtapi.Envelope{MatchData: &rtapi.MatchData{
		MatchID:  m.id,
		Presence: c.presence(),
		OpCode:   req.OpCode,
		Data:     req.Data,
		Reliable: req.Reliable,
	}})
}

func channelID(c *Session, req *rtapi.ChannelJoin) (string, bool) {
	switch req.Type {
	case rtapi.ChannelTypeRoom:
		return "2..." + req.Target, true
	case rtapi.ChannelTypeGroup:
		return "3." + req.Target + "..", true
	case rtapi.ChannelTypeDirectMessage:
		users := []string{c.userID, req.Target}
		sort.Strings(users)
		return "4..." + users[0] + "." + users[1], true
	default:
		return "", false
	}
}

func (ch *channel) describe(msg *rtapi.ChannelMessage) {
	switch ch.kind {
	case rtapi.ChannelTypeRoom:
		msg.RoomName = ch.target
	case rtapi.ChannelTypeGroup:
		msg.GroupID = ch.target
	}
}

func (w *world) channelJoin(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.ChannelJoin
	if req.Target == "" {
		return badInput("Invalid channel target."), nil
	}
	id, ok := channelID(c, req)
	if !ok {
		return badInput("Invalid channel type."), nil
	}

	ch, exists := w.channels[id]
	if !exists {
		ch = &channel{id: id, kind: req.Type, target: req.Target, persistence: req.Persistence, hidden: make(map[string]bool)}
		w.channels[id] = ch
	}

	var out []delivery
	if !contains(ch.members, c) {
		ch.members = append(ch.members, c)
		ch.hidden[c.id] = req.Hidden
		if !req.Hidden {
			out = fanout(ch.members, c, &rtapi.Envelope{ChannelPresenceEvent: &rtapi.ChannelPresenceEvent{
				ChannelID: id,
				Joins:     []*rtapi.UserPresence{c.presence()},
				RoomName:  roomName(ch),
			}})
		}
	}

	reply := &rtapi.Channel{ID: id, Self: c.presence()}
	for _, m := range ch.members {
		if m != c && !ch.hidden[m.id] {
			reply.Presences = append(reply.Presences, m.presence())
		}
	}
	switch req.Type {
	case rtapi.ChannelTypeRoom:
		reply.RoomName = req.Target
	case rtapi.ChannelTypeGroup:
		reply.GroupID = req.Target
	case rtapi.ChannelTypeDirectMessage:
		reply.UserIDOne, reply.UserIDTwo = c.userID, req.Target
	}
	return &rtapi.Envelope{Channel: reply}, out
}

func roomName(ch *channel) string {
	if ch.kind == rtapi.ChannelTypeRoom {
		return ch.target
	}
	return ""
}

func (w *world) channelLeave(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	ch, ok := w.channels[env.ChannelLeave.ChannelID]
	if !ok {
		return ack(), nil
	}
	var left bool
	if ch.members, left = without(ch.members, c); !left {
		return ack(), nil
	}
	hidden := ch.hidden[c.id]
	delete(ch.hidden, c.id)
	if len(ch.members) == 0 {
		delete(w.channels, ch.id)
		return ack(), nil
	}
	if hidden {
		return ack(), nil
	}
	return ack(), fanout(ch.members, nil, &rtapi.Envelope{ChannelPresenceEvent: &rtapi.ChannelPresenceEvent{
		ChannelID: ch.id,
		Leaves:    []*rtapi.UserPresence{c.presence()},
		RoomName:  roomName(ch),
	}})
}

// Channel message codes.
const (
	codeChat   int32 = 0
	codeUpdate int32 = 1
	codeRemove int32 = 2
)

func (w *world) memberChannel(c *Session, id string) (*channel, *rtapi.Envelope) {
	ch, ok := w.channels[id]
	if !ok || !contains(ch.members, c) {
		return nil, badInput("Must join channel before sending messages.")
	}
	return ch, nil
}

func (w *world) channelMessage(c *Session, ch *channel, messageID, content string, code int32) (*rtapi.Envelope, []delivery) {
	ts := w.now().UTC().Format(time.RFC3339)
	msg := &rtapi.ChannelMessage{
		ChannelID:  ch.id,
		MessageID:  messageID,
		Code:       code,
		SenderID:   c.userID,
		Username:   c.userID,
		Content:    content,
		CreateTime: ts,
		UpdateTime: ts,
		Persistent: ch.persistence,
	}
	ch.describe(msg)

	reply := &rtapi.Envelope{ChannelMessageAck: &rtapi.ChannelMessageAck{
		ChannelID:  ch.id,
		MessageID:  messageID,
		Code:       code,
		Username:   c.userID,
		CreateTime: ts,
		UpdateTime: ts,
		Persistent: ch.persistence,
		RoomName:   msg.RoomName,
		GroupID:    msg.GroupID,
	}}
	return reply, fanout(ch.members, nil, &rtapi.Envelope{ChannelMessage: msg})
}

func (w *world) channelMessageSend(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.ChannelMessageSend
	ch, errEnv := w.memberChannel(c, req.ChannelID)
	if errEnv != nil {
		return errEnv, nil
	}
	return w.channelMessage(c, ch, uuid.New().String(), req.Content, codeChat)
}

func (w *world) channelMessageUpdate(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.ChannelMessageUpdate
	if req.MessageID == "" {
		return badInput("Invalid message identifier."), nil
	}
	ch, errEnv := w.memberChannel(c, req.ChannelID)
	if errEnv != nil {
		return errEnv, nil
	}
	return w.channelMessage(c, ch, req.MessageID, req.Content, codeUpdate)
}

func (w *world) channelMessageRemove(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.ChannelMessageRemove
	if req.MessageID == "" {
		return badInput("Invalid message identifier."), nil
	}
	ch, errEnv := w.memberChannel(c, req.ChannelID)
	if errEnv != nil {
		return errEnv, nil
	}
	return w.channelMessage(c, ch, req.MessageID, "", codeRemove)
}

func (w *world) addTicket(t *ticket) []delivery {
	w.tickets = append(w.tickets, t)

	var pool []*ticket
	for _, other := range w.tickets {
		if other.query == t.query {
			pool = append(pool, other)
		}
	}
	limit := t.max
	if limit < t.min {
		limit = t.min
	}
	// Count sessions, not tickets: a party ticket brings every member.
	var matched []*ticket
	var sessions []*Session
	for _, p := range pool {
		members := w.ticketSessions(p)
		if len(sessions)+len(members) > limit {
			continue
		}
		matched = append(matched, p)
		sessions = append(sessions, members...)
	}
	if len(sessions) < t.min {
		return nil
	}

	matchID := uuid.New().String() + "."
	token := uuid.New().String()
	w.matches[matchID] = &match{id: matchID}
	w.tokens[token] = matchID

	users := make([]*rtapi.MatchmakerUser, 0, len(sessions))
	bySession := make(map[*Session]*rtapi.MatchmakerUser, len(sessions))
	for _, m := range matched {
		for _, s := range w.ticketSessions(m) {
			u := &rtapi.MatchmakerUser{
				Presence:          s.presence(),
				PartyID:           m.partyID,
				StringProperties:  m.props,
				NumericProperties: m.numeric,
			}
			users = append(users, u)
			bySession[s] = u
		}
	}

	var out []delivery
	for _, m := range matched {
		for _, s := range w.ticketSessions(m) {
			out = append(out, delivery{to: s, env: &rtapi.Envelope{MatchmakerMatched: &rtapi.MatchmakerMatched{
				Ticket: m.id,
				Token:  token,
				Users:  users,
				Self:   bySession[s],
			}}})
		}
	}

	kept := w.tickets[:0]
	for _, other := range w.tickets {
		if !containsTicket(matched, other) {
			kept = append(kept, other)
		}
	}
	w.tickets = kept
	return out
}

func containsTicket(tickets []*ticket, t *ticket) bool {
	for _, o := range tickets {
		if o == t {
			return true
		}
	}
	return false
}

func (w *world) ticketSessions(t *ticket) []*Session {
	if t.partyID == "" {
		return []*Session{t.owner}
	}
	if p, ok := w.parties[t.partyID]; ok {
		return p.members
	}
	return []*Session{t.owner}
}

func validCounts(lo, hi int32) bool {
	return lo >= 1 && hi >= lo
}

func (w *world) matchmakerAdd(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.MatchmakerAdd
	if !validCounts(req.MinCount, req.MaxCount) {
		return badInput("Invalid matchmaker counts."), nil
	}
	t := &ticket{
		id:      uuid.New().String(),
		owner:   c,
		query:   req.Query,
		min:     int(req.MinCount),
		max:     int(req.MaxCount),
		props:   req.StringProperties,
		numeric: req.NumericProperties,
	}
	return &rtapi.Envelope{MatchmakerTicket: &rtapi.MatchmakerTicket{Ticket: t.id}}, w.addTicket(t)
}

func (w *world) removeTicket(c *Session, id, partyID string) bool {
	for i, t := range w.tickets {
		if t.id == id && t.owner == c && t.partyID == partyID {
			w.tickets = append(w.tickets[:i], w.tickets[i+1:]...)
			return true
		}
	}
	return false
}

func (w *world) matchmakerRemove(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	if !w.removeTicket(c, env.MatchmakerRemove.Ticket, "") {
		return badInput("Matchmaker ticket not found."), nil
	}
	return ack(), nil
}

// online returns the online sessions of userID.
func (w *world) online(userID string) []*Session {
	var out []*Session
	for _, s := range w.users[userID] {
		if s.online {
			out = append(out, s)
		}
	}
	return out
}

func (w *world) statusFollow(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.StatusFollow
	// Usernames equal user ids on this server.
	ids := append(append([]string{}, req.UserIDs...), req.Usernames...)

	status := &rtapi.Status{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || id == c.userID || seen[id] {
			continue
		}
		seen[id] = true
		if !contains(w.follows[id], c) {
			w.follows[id] = append(w.follows[id], c)
		}
		for _, s := range w.online(id) {
			p := s.presence()
			p.Status = s.status
			status.Presences = append(status.Presences, p)
		}
	}
	return &rtapi.Envelope{Status: status}, nil
}

func (w *world) statusUnfollow(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	for _, id := range env.StatusUnfollow.UserIDs {
		w.follows[id], _ = without(w.follows[id], c)
	}
	return ack(), nil
}

func (w *world) statusEvent(c *Session, join bool) []delivery {
	p := c.presence()
	p.Status = c.status
	ev := &rtapi.StatusPresenceEvent{}
	if join {
		ev.Joins = []*rtapi.UserPresence{p}
	} else {
		ev.Leaves = []*rtapi.UserPresence{p}
	}
	return fanout(w.follows[c.userID], c, &rtapi.Envelope{StatusPresenceEvent: ev})
}

func (w *world) statusUpdate(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	status := env.StatusUpdate.Status
	if status == "" {
		if !c.online {
			return nil, nil
		}
		out := w.statusEvent(c, false)
		c.online, c.status = false, ""
		return nil, out
	}

	var out []delivery
	if c.online {
		// Followers see the old status leave before the new one joins.
		out = w.statusEvent(c, false)
	}
	c.online, c.status = true, status
	return nil, append(out, w.statusEvent(c, true)...)
}

func (p *party) view(self *Session) *rtapi.Party {
	return &rtapi.Party{
		PartyID:   p.id,
		Open:      p.open,
		MaxSize:   int32(p.maxSize),
		Self:      self.presence(),
		Leader:    p.leader.presence(),
		Presences: presences(p.members, nil),
	}
}

func (w *world) leaderParty(c *Session, id string) (*party, *rtapi.Envelope) {
	p, ok := w.parties[id]
	if !ok {
		return nil, badInput("Party not found.")
	}
	if p.leader != c {
		return nil, badInput("Only the party leader can do that.")
	}
	return p, nil
}

func (w *world) partyCreate(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyCreate
	if req.MaxSize < 1 || req.MaxSize > 256 {
		return badInput("Invalid party max size, must be 1-256."), nil
	}
	p := &party{
		id:      uuid.New().String() + ".",
		open:    req.Open,
		maxSize: int(req.MaxSize),
		leader:  c,
		members: []*Session{c},
	}
	w.parties[p.id] = p
	return &rtapi.Envelope{Party: p.view(c)}, nil
}

func (w *world) addPartyMember(p *party, c *Session) []delivery {
	out := fanout(p.members, nil, &rtapi.Envelope{PartyPresenceEvent: &rtapi.PartyPresenceEvent{
		PartyID: p.id,
		Joins:   []*rtapi.UserPresence{c.presence()},
	}})
	p.members = append(p.members, c)
	return append(out, delivery{to: c, env: &rtapi.Envelope{Party: p.view(c)}})
}

func (w *world) partyJoin(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	p, ok := w.parties[env.PartyJoin.PartyID]
	if !ok {
		return badInput("Party not found."), nil
	}
	if contains(p.members, c) {
		return ack(), nil
	}
	if len(p.members)+len(p.requests) >= p.maxSize {
		return badInput("Party is full."), nil
	}
	if p.open {
		return ack(), w.addPartyMember(p, c)
	}
	if !contains(p.requests, c) {
		p.requests = append(p.requests, c)
	}
	return ack(), []delivery{{to: p.leader, env: &rtapi.Envelope{PartyJoinRequest: &rtapi.PartyJoinRequest{
		PartyID:   p.id,
		Presences: presences(p.requests, nil),
	}}}}
}

// removePartyMember drops c from p, handing leadership on or closing an
// empty party.
func (w *world) removePartyMember(p *party, c *Session) []delivery {
	var left bool
	if p.members, left = without(p.members, c); !left {
		return nil
	}
	if len(p.members) == 0 {
		delete(w.parties, p.id)
		for _, t := range w.tickets {
			if t.partyID == p.id {
				w.removeTicket(t.owner, t.id, p.id)
				break
			}
		}
		return nil
	}
	out := fanout(p.members, nil, &rtapi.Envelope{PartyPresenceEvent: &rtapi.PartyPresenceEvent{
		PartyID: p.id,
		Leaves:  []*rtapi.UserPresence{c.presence()},
	}})
	if p.leader == c {
		p.leader = p.members[0]
		out = append(out, fanout(p.members, nil, &rtapi.Envelope{PartyLeader: &rtapi.PartyLeader{
			PartyID:  p.id,
			Presence: p.leader.presence(),
		}})...)
	}
	return out
}

func (w *world) partyLeave(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	p, ok := w.parties[env.PartyLeave.PartyID]
	if !ok {
		return ack(), nil
	}
	return ack(), w.removePartyMember(p, c)
}

func (w *world) partyPromote(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyPromote
	p, errEnv := w.leaderParty(c, req.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	target := find(p.members, req.Presence)
	if target == nil {
		return badInput("Presence is not a party member."), nil
	}
	p.leader = target
	return ack(), fanout(p.members, nil, &rtapi.Envelope{PartyLeader: &rtapi.PartyLeader{
		PartyID:  p.id,
		Presence: target.presence(),
	}})
}

func (w *world) partyAccept(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyAccept
	p, errEnv := w.leaderParty(c, req.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	target := find(p.requests, req.Presence)
	if target == nil {
		return badInput("Presence has not requested to join."), nil
	}
	p.requests, _ = without(p.requests, target)
	return ack(), w.addPartyMember(p, target)
}

func (w *world) partyRemove(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyRemove
	p, errEnv := w.leaderParty(c, req.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	if target := find(p.requests, req.Presence); target != nil {
		p.requests, _ = without(p.requests, target)
		return ack(), nil
	}
	target := find(p.members, req.Presence)
	if target == nil || target == c {
		return badInput("Presence is not a removable party member."), nil
	}
	out := w.removePartyMember(p, target)
	out = append(out, delivery{to: target, env: &rtapi.Envelope{PartyClose: &rtapi.PartyClose{PartyID: p.id}}})
	return ack(), out
}

func (w *world) partyClose(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	p, errEnv := w.leaderParty(c, env.PartyClose.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	delete(w.parties, p.id)
	return ack(), fanout(p.members, c, &rtapi.Envelope{PartyClose: &rtapi.PartyClose{PartyID: p.id}})
}

func (w *world) partyJoinRequestList(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	p, errEnv := w.leaderParty(c, env.PartyJoinRequestList.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	return &rtapi.Envelope{PartyJoinRequest: &rtapi.PartyJoinRequest{
		PartyID:   p.id,
		Presences: presences(p.requests, nil),
	}}, nil
}

func (w *world) partyMatchmakerAdd(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyMatchmakerAdd
	p, errEnv := w.leaderParty(c, req.PartyID)
	if errEnv != nil {
		return errEnv, nil
	}
	if !validCounts(req.MinCount, req.MaxCount) {
		return badInput("Invalid matchmaker counts."), nil
	}
	t := &ticket{
		id:      uuid.New().String(),
		owner:   c,
		partyID: p.id,
		query:   req.Query,
		min:     int(req.MinCount),
		max:     int(req.MaxCount),
		props:   req.StringProperties,
		numeric: req.NumericProperties,
	}
	reply := &rtapi.Envelope{PartyMatchmakerTicket: &rtapi.PartyMatchmakerTicket{PartyID: p.id, Ticket: t.id}}
	return reply, w.addTicket(t)
}

func (w *world) partyMatchmakerRemove(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyMatchmakerRemove
	if _, errEnv := w.leaderParty(c, req.PartyID); errEnv != nil {
		return errEnv, nil
	}
	if !w.removeTicket(c, req.Ticket, req.PartyID) {
		return badInput(fmt.Sprintf("Ticket %s not found.", req.Ticket)), nil
	}
	return ack(), nil
}

func (w *world) partyDataSend(c *Session, env *rtapi.Envelope) (*rtapi.Envelope, []delivery) {
	req := env.PartyDataSend
	p, ok := w.parties[req.PartyID]
	if !ok || !contains(p.members, c) {
		return nil, nil
	}
	return nil, fanout(p.members, c, &rtapi.Envelope{PartyData: &rtapi.PartyData{
		PartyID:  p.id,
		Presence: c.presence(),
		OpCode:   req.OpCode,
		Data:     req.Data,
	}})
}
