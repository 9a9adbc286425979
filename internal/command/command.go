// Package command implements the bot's chat commands.
package command

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/john/commander/internal/dispatch"
	"github.com/john/commander/internal/format"
	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/source"
)

// Command names, without the prefix.
const (
	NameNow  = "now"
	NameLive = "live"
)

// Aggregator produces one ranked result per configured source.
type Aggregator interface {
	Aggregate(ctx context.Context) []source.Result
}

// SnapshotRecorder receives every aggregation result for archiving.
type SnapshotRecorder interface {
	Record(results []source.Result)
}

// Now replies with the current time in UTC and the formatter's reference zone.
type Now struct {
	Clock     clockwork.Clock
	Formatter *format.Formatter
}

// Handle ignores args.
func (h *Now) Handle(ctx context.Context, room string, args []string) []message.Outgoing {
	return []message.Outgoing{h.Formatter.Now(h.Clock.Now())}
}

// Live replies with a ranked summary per stream source.
type Live struct {
	Aggregator Aggregator
	Formatter  *format.Formatter
	Recorder   SnapshotRecorder // optional
}

// Handle ignores args. It blocks until every source has answered or timed out.
func (h *Live) Handle(ctx context.Context, room string, args []string) []message.Outgoing {
	log := logging.Ctx(ctx)
	log.Info().Msg("Loading stream listings.")

	results := h.Aggregator.Aggregate(ctx)
	if h.Recorder != nil {
		h.Recorder.Record(results)
	}
	return h.Formatter.Live(results)
}

// Register installs the standard commands on d.
func Register(d *dispatch.Dispatcher, now *Now, live *Live) {
	d.Register(NameNow, now)
	d.Register(NameLive, live)
}
