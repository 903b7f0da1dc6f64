package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/rtapi"
)

const chatHelp = `Commands:
  /join <room>        switch to another room
  /leave              leave the current room
  /status [text]      set your status (empty to appear offline)
  /follow <user>...   receive status updates for users
  /rpc <id> [payload] call a server function
  /ping               measure a round trip
  /quit               exit
Anything else is sent to the current room.`

// command is one parsed REPL line. A line without a leading slash is a
// "say" command carrying the whole line.
type command struct {
	name string
	arg  string
}

func parseLine(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// chatMessage is the content document chat messages carry.
type chatMessage struct {
	Message string `json:"message"`
}

func encodeMessage(text string) (string, error) {
	data, err := json.Marshal(chatMessage{Message: text})
	if err != nil {
		return "", errors.Wrap(err, "encode message")
	}
	return string(data), nil
}

// messageText extracts the text of a chat message, falling back to the raw
// content for documents of another shape.
func messageText(content string) string {
	var m chatMessage
	if err := json.Unmarshal([]byte(content), &m); err == nil && m.Message != "" {
		return m.Message
	}
	return content
}

// chatSession runs REPL commands against one socket.
type chatSession struct {
	socket rtsock.Socket
	out    io.Writer

	mu      sync.Mutex
	channel *rtapi.Channel
}

func newChatSession(socket rtsock.Socket, out io.Writer) *chatSession {
	c := &chatSession{socket: socket, out: out}

	socket.OnReceivedChannelMessage(func(m *rtapi.ChannelMessage) {
		switch m.Code {
		case 1:
			fmt.Fprintf(c.out, "* %s edited: %s\n", m.Username, messageText(m.Content))
		case 2:
			fmt.Fprintf(c.out, "* %s removed a message\n", m.Username)
		default:
			fmt.Fprintf(c.out, "[%s] %s: %s\n", roomLabel(m.RoomName, m.ChannelID), m.Username, messageText(m.Content))
		}
	})
	socket.OnReceivedChannelPresence(func(ev *rtapi.ChannelPresenceEvent) {
		room := roomLabel(ev.RoomName, ev.ChannelID)
		for _, p := range ev.Joins {
			fmt.Fprintf(c.out, "* %s joined %s\n", p.Username, room)
		}
		for _, p := range ev.Leaves {
			fmt.Fprintf(c.out, "* %s left %s\n", p.Username, room)
		}
	})
	socket.OnReceivedStatusPresence(func(ev *rtapi.StatusPresenceEvent) {
		for _, p := range ev.Joins {
			fmt.Fprintf(c.out, "* %s is online: %s\n", p.Username, p.Status)
		}
		for _, p := range ev.Leaves {
			fmt.Fprintf(c.out, "* %s went offline\n", p.Username)
		}
	})
	socket.OnReceivedNotification(func(n *rtapi.Notifications) {
		for _, note := range n.Notifications {
			fmt.Fprintf(c.out, "! %s\n", note.Subject)
		}
	})
	socket.OnReceivedError(func(e *rtapi.Error) {
		fmt.Fprintf(c.out, "! server error: %s\n", e.Error())
	})
	socket.OnClosed(func() {
		fmt.Fprintln(c.out, "! disconnected")
	})
	return c
}

func roomLabel(room, channelID string) string {
	if room != "" {
		return room
	}
	return channelID
}

func (c *chatSession) current() *rtapi.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *chatSession) join(ctx context.Context, room string) error {
	if prev := c.current(); prev != nil {
		if err := c.socket.LeaveChat(ctx, prev.ID); err != nil {
			return err
		}
	}
	ch, err := c.socket.JoinChat(ctx, room, rtapi.ChannelTypeRoom, false, false)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	fmt.Fprintf(c.out, "* joined %s (%d online)\n", room, len(ch.Presences)+1)
	return nil
}

// handle runs one command. It reports quit when the REPL should exit.
func (c *chatSession) handle(ctx context.Context, cmd command) (quit bool, err error) {
	switch cmd.name {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, chatHelp)
	case "join":
		if cmd.arg == "" {
			return false, errors.New("usage: /join <room>")
		}
		return false, c.join(ctx, cmd.arg)
	case "leave":
		ch := c.current()
		if ch == nil {
			return false, errors.New("not in a room")
		}
		if err := c.socket.LeaveChat(ctx, ch.ID); err != nil {
			return false, err
		}
		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()
	case "status":
		return false, c.socket.UpdateStatus(ctx, cmd.arg)
	case "follow":
		users := strings.Fields(cmd.arg)
		if len(users) == 0 {
			return false, errors.New("usage: /follow <user>...")
		}
		status, err := c.socket.FollowUsers(ctx, nil, users)
		if err != nil {
			return false, err
		}
		for _, p := range status.Presences {
			fmt.Fprintf(c.out, "* %s is online: %s\n", p.Username, p.Status)
		}
	case "rpc":
		id, payload, _ := strings.Cut(cmd.arg, " ")
		if id == "" {
			return false, errors.New("usage: /rpc <id> [payload]")
		}
		reply, err := c.socket.RPC(ctx, id, payload)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "= %s\n", reply.Payload)
	case "ping":
		if err := c.socket.Ping(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "= pong")
	case "say":
		ch := c.current()
		if ch == nil {
			return false, errors.New("not in a room, use /join <room>")
		}
		content, err := encodeMessage(cmd.arg)
		if err != nil {
			return false, err
		}
		_, err = c.socket.WriteChatMessage(ctx, ch.ID, content)
		return false, err
	default:
		return false, errors.Errorf("unknown command /%s, try /help", cmd.name)
	}
	return false, nil
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [room]",
		Short: "Join a chat room and talk interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room := "lobby"
			if len(args) == 1 {
				room = args[0]
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			socket, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer socket.Close(context.Background())

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "rtsock> ",
				HistoryFile:     os.ExpandEnv("$HOME/.rtsock_history"),
				HistoryLimit:    1000,
				AutoComplete:    chatCompleter(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return errors.Wrap(err, "readline")
			}
			defer rl.Close()

			session := newChatSession(socket, rl.Stdout())
			if err := session.join(ctx, room); err != nil {
				return err
			}
			return repl(ctx, rl, session)
		},
	}
}

func repl(ctx context.Context, rl *readline.Instance, session *chatSession) error {
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		quit, err := session.handle(ctx, parseLine(line))
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func chatCompleter() readline.AutoCompleter {
	commands := []string{"/join", "/leave", "/status", "/follow", "/rpc", "/ping", "/help", "/quit"}
	items := make([]readline.PrefixCompleterInterface, len(commands))
	for i, c := range commands {
		items[i] = readline.PcItem(c)
	}
	return readline.NewPrefixCompleter(items...)
}
