// Package rtsock provides a client for a game backend's realtime socket.
//
// Chat, matches, matchmaking, parties, status presence and RPC all share one
// persistent WebSocket connection carrying JSON envelopes. This package turns
// that connection into independently awaitable operations plus a set of
// handlers for events the server pushes on its own.
//
// # Architecture
//
// A Socket is built on an Adapter (the transport) and a broker holding the
// pending calls. Each call/response operation gets a fresh correlation id
// ("cid"), registers a waiter under it, sends its envelope and blocks. The
// server echoes the cid in its reply, and the dispatcher wakes the waiter.
// Envelopes without a cid are push events; they are routed by which payload
// field is set to the one handler registered for that kind.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/rtsock"
//	    "github.com/luciancaetano/rtsock/rtapi"
//	    "github.com/luciancaetano/rtsock/ws"
//	)
//
//	socket := ws.New(ws.NewConfig("127.0.0.1", 7350))
//	go socket.Run(ctx, 0) // tick at ~60 Hz
//
//	socket.OnReceivedChannelMessage(func(msg *rtapi.ChannelMessage) {
//	    log.Printf("%s: %s", msg.Username, msg.Content)
//	})
//
//	session := rtsock.NewSession(authToken, refreshToken)
//	if err := socket.Connect(ctx, session, true); err != nil {
//	    return err
//	}
//
//	channel, err := socket.JoinChat(ctx, "MyRoom", rtapi.ChannelTypeRoom, true, false)
//
// # Ticking
//
// The transport reads frames on its own goroutine but only hands them over
// inside Tick. Nothing is dispatched, and no call completes, unless the
// application ticks the socket, either from its game loop or with Run.
//
// # Wire Format
//
//	{"cid":"2","match_create":{}}
//	{"cid":"2","match":{"match_id":"...","size":1}}
//	{"status_presence_event":{"joins":[{"user_id":"..."}]}}
//
// Correlation ids are decimal strings of a per-socket counter starting at 1.
//
// # Errors
//
// Call operations return *rtapi.Error when the server answers with an error
// payload, an error matching ErrUnexpectedReply when the reply lacks the
// expected payload, and ErrClosed or ErrDisconnected when the connection goes
// away while the call waits. Malformed frames and transport errors are logged
// and dropped; they never fail an unrelated call.
//
// # Timeouts
//
// Calls wait without a deadline by default. Set CallTimeout in the config, or
// pass a context with a deadline, to bound them.
package rtsock
