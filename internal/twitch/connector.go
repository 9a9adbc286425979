// Package twitch is the chat transport: it holds the IRC session, joins the
// bot's room and hands room messages to a callback.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/source"
)

// ErrNotConnected is returned by Send before Start has created the session.
var ErrNotConnected = errors.New("twitch: not connected")

// MessageHandler receives every room message, on the transport's read loop.
type MessageHandler func(ctx context.Context, msg message.ChatMessage)

// ircClient is the subset of *twitch.Client the connector drives.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnReconnectMessage(func(twitch.ReconnectMessage))
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

// Connector manages the bot's Twitch chat session.
type Connector struct {
	username string
	oauth    string
	address  string
	room     string

	newClient func(username, oauth string) ircClient

	mu        sync.Mutex
	client    ircClient
	connected atomic.Bool
}

// New creates a connector for the account username, joining room once the
// session starts. address overrides the IRC server when non-empty.
func New(username, oauth, address, room string) *Connector {
	return &Connector{
		username: username,
		oauth:    oauth,
		address:  address,
		room:     normalizeRoom(room),
		newClient: func(username, oauth string) ircClient {
			return twitch.NewClient(username, oauth)
		},
	}
}

// Room returns the room the connector joins.
func (c *Connector) Room() string { return c.room }

// Connected reports whether the chat session is up.
func (c *Connector) Connected() bool { return c.connected.Load() }

// Start connects and delivers room messages to handle until ctx is cancelled
// or the connection fails.
func (c *Connector) Start(ctx context.Context, handle MessageHandler) error {
	log := logging.Component("twitch")

	client := c.newClient(c.username, c.oauth)
	if tc, ok := client.(*twitch.Client); ok && c.address != "" {
		tc.IrcAddress = c.address
	}

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		handle(ctx, message.ChatMessage{
			Sender: msg.User.Name,
			Room:   strings.TrimPrefix(msg.Channel, "#"),
			Body:   msg.Message,
		})
	})
	client.OnConnect(func() {
		c.connected.Store(true)
		log.Info().Msg("Chat session started.")
		log.Info().Str(logging.FieldRoom, c.room).Str("nick", c.username).Msg("Joining room")
	})
	client.OnReconnectMessage(func(twitch.ReconnectMessage) {
		log.Warn().Msg("Server requested reconnect")
	})

	// Joins issued before Connect are sent once the session is up.
	client.Join(c.room)

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	defer c.connected.Store(false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			return fmt.Errorf("twitch irc connection: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Disconnecting from Twitch IRC...")
		if err := client.Disconnect(); err != nil {
			if !errors.Is(err, twitch.ErrConnectionIsNotOpen) {
				log.Warn().Err(err).Msg("Disconnect failed")
			}
			return ctx.Err()
		}
		<-errCh
		return ctx.Err()
	}
}

// Send posts a message to room. Twitch chat has no rich text, so only the plain
// body is transmitted as a single IRC line.
func (c *Connector) Send(room, plain, markup string) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	client.Say(normalizeRoom(room), ircLine(plain))
	logging.Component("twitch").Debug().Str(logging.FieldRoom, room).Str("markup", markup).Msg("Sent room message")
	return nil
}

// ircLine joins the lines of body with " | " and drops every other control
// character, so CR, NUL or CTCP bytes can never reach the wire.
func ircLine(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = source.StripControl(l)
	}
	return strings.Join(lines, " | ")
}

func normalizeRoom(room string) string {
	return strings.ToLower(strings.TrimPrefix(room, "#"))
}
