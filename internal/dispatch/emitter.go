package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/metrics"
)

// MinInterval is the smallest spacing allowed between two sends.
const MinInterval = time.Second

// Sender is the write side of the chat transport.
type Sender interface {
	Send(room, plain, markup string) error
}

// Emitter is the only writer to the chat transport. Sends happen one at a
// time, in call order, spaced by at least the configured interval.
type Emitter struct {
	sender  Sender
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewEmitter creates an emitter pacing sends by interval.
func NewEmitter(sender Sender, interval time.Duration) *Emitter {
	return &Emitter{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Emit sends msgs to room in order. It stops at the first failed send or when
// ctx is done, returning how many messages were sent.
func (e *Emitter) Emit(ctx context.Context, room string, msgs []message.Outgoing) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := logging.Ctx(ctx)
	for i, m := range msgs {
		if err := e.limiter.Wait(ctx); err != nil {
			return i, fmt.Errorf("wait for send slot: %w", err)
		}
		if err := e.sender.Send(room, m.Plain, m.Markup); err != nil {
			return i, fmt.Errorf("send message %d/%d: %w", i+1, len(msgs), err)
		}
		metrics.MessagesSent.Inc()
		log.Debug().Int("index", i).Str("body", m.Plain).Msg("Sent message")
	}
	return len(msgs), nil
}
