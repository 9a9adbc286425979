// Package dispatch turns room messages into command invocations and sends the
// replies back through a paced Emitter.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/metrics"
)

// DefaultPrefix marks a message as a command.
const DefaultPrefix = "!"

// ErrUnknownCommand is returned by Lookup for unregistered names.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a parsed command message.
type Command struct {
	Name string
	Args []string
}

// Handler computes the replies for one command invocation. It validates its
// own arguments and should return quickly enough not to stall the transport.
type Handler interface {
	Handle(ctx context.Context, room string, args []string) []message.Outgoing
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, room string, args []string) []message.Outgoing

func (f HandlerFunc) Handle(ctx context.Context, room string, args []string) []message.Outgoing {
	return f(ctx, room, args)
}

// Dispatcher routes command messages to registered handlers.
type Dispatcher struct {
	nickname string
	prefix   string
	emitter  *Emitter

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a dispatcher for the bot identified by nickname. An empty prefix
// means DefaultPrefix.
func New(nickname, prefix string, emitter *Emitter) *Dispatcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Dispatcher{
		nickname: nickname,
		prefix:   prefix,
		emitter:  emitter,
		handlers: make(map[string]Handler),
	}
}

// Register binds name (without prefix) to h, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (d *Dispatcher) Lookup(name string) (Handler, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[name]
	if !ok {
		return nil, ErrUnknownCommand
	}
	return h, nil
}

// Commands lists the registered command names.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// Parse splits body into a command when it starts with prefix. Tokens are
// separated by single spaces.
func Parse(body, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return Command{}, false
	}
	tokens := strings.Split(body, " ")
	return Command{
		Name: strings.TrimPrefix(tokens[0], prefix),
		Args: tokens[1:],
	}, true
}

// OnMessage handles one inbound room message. Own messages, non-commands and
// unknown commands are ignored. Otherwise the handler runs synchronously and
// its replies are emitted before OnMessage returns.
func (d *Dispatcher) OnMessage(ctx context.Context, msg message.ChatMessage) {
	if msg.Sender == d.nickname {
		return
	}
	cmd, ok := Parse(msg.Body, d.prefix)
	if !ok {
		return
	}
	h, err := d.Lookup(cmd.Name)
	if err != nil {
		return
	}

	log := logging.L().With().
		Str(logging.FieldDispatchID, uuid.NewString()).
		Str(logging.FieldCommand, cmd.Name).
		Str(logging.FieldRoom, msg.Room).
		Str(logging.FieldSender, msg.Sender).
		Logger()
	ctx = logging.WithLogger(ctx, log)

	log.Info().Strs("args", cmd.Args).Msgf("Got command %s%s from %s.", d.prefix, cmd.Name, msg.Sender)
	metrics.CommandsDispatched.WithLabelValues(cmd.Name).Inc()

	replies := h.Handle(ctx, msg.Room, cmd.Args)
	if len(replies) == 0 {
		return
	}
	if n, err := d.emitter.Emit(ctx, msg.Room, replies); err != nil {
		log.Error().Err(err).Int("sent", n).Int("total", len(replies)).Msg("Failed to send replies")
	}
}

// Serve handles messages from in one at a time until ctx is cancelled or in is
// closed. Messages arriving while a handler runs wait in the channel.
func (d *Dispatcher) Serve(ctx context.Context, in <-chan message.ChatMessage) error {
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			d.OnMessage(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
