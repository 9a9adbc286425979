// Package format renders command results as chat messages. Every message has a
// plain body and a markup body built from the same fragments.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/source"
)

// Layout selects how a stream summary is split into messages.
type Layout string

const (
	// LayoutPerItem sends the banner and then one message per stream.
	LayoutPerItem Layout = "per-item"
	// LayoutCombined sends the banner and all streams as a single message.
	LayoutCombined Layout = "combined"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutPerItem || l == LayoutCombined
}

const (
	timestampLayout = "2006-01-02 15:04:05-07:00"

	DefaultMaxItems  = 5
	DefaultGame      = "Planetary Annihilation"
	DefaultGameShort = "PA"
	DefaultZoneLabel = "Ubertime"
	DefaultZone      = "America/Los_Angeles"
)

// Config controls the formatter's wording and limits.
type Config struct {
	Game      string
	GameShort string
	MaxItems  int
	Layout    Layout
	Location  *time.Location
	ZoneLabel string
}

// Formatter builds outgoing messages. It is safe for concurrent use.
type Formatter struct {
	cfg Config
}

// New creates a formatter, filling unset fields with defaults.
func New(cfg Config) *Formatter {
	if cfg.Game == "" {
		cfg.Game = DefaultGame
	}
	if cfg.GameShort == "" {
		cfg.GameShort = DefaultGameShort
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if !cfg.Layout.Valid() {
		cfg.Layout = LayoutPerItem
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ZoneLabel == "" {
		cfg.ZoneLabel = DefaultZoneLabel
	}
	return &Formatter{cfg: cfg}
}

// Now renders the "current time" reply for instant t.
func (f *Formatter) Now(t time.Time) message.Outgoing {
	utc := t.UTC().Truncate(time.Second)
	local := utc.In(f.cfg.Location)

	var p pair
	p.text("It is now ").
		bold(utc.Format(timestampLayout)).
		text(" (UTC) / ").
		bold(local.Format(timestampLayout)).
		text(" (" + f.cfg.ZoneLabel + ")")
	return p.message()
}

// Live renders every source's summary, in result order.
func (f *Formatter) Live(results []source.Result) []message.Outgoing {
	var out []message.Outgoing
	for _, r := range results {
		out = append(out, f.Summary(r.Source, r.Records)...)
	}
	return out
}

// Summary renders the banner for records followed by at most MaxItems of them.
// records must already be ranked.
func (f *Formatter) Summary(src source.Config, records []source.StreamRecord) []message.Outgoing {
	n := len(records)
	shown := min(n, f.cfg.MaxItems)

	var banner pair
	f.banner(&banner, src, n)

	if f.cfg.Layout == LayoutCombined {
		for i := 0; i < shown; i++ {
			banner.lineBreak()
			item(&banner, i+1, records[i])
		}
		return []message.Outgoing{banner.message()}
	}

	out := make([]message.Outgoing, 0, shown+1)
	out = append(out, banner.message())
	for i := 0; i < shown; i++ {
		var p pair
		item(&p, i+1, records[i])
		out = append(out, p.message())
	}
	return out
}

func (f *Formatter) banner(p *pair, src source.Config, n int) {
	switch {
	case n == 0:
		p.text("There are no " + f.cfg.Game + " streams on ").
			linkText(src.BrowseURL, src.Label).
			text(" at the moment.")
	case n == 1:
		p.text("There currently is ").
			bold("one").
			text(" " + f.cfg.GameShort + " stream on " + src.Label + ":")
	case n <= f.cfg.MaxItems:
		p.text("There currently are ").
			bold(strconv.Itoa(n)).
			text(" " + f.cfg.GameShort + " streams on " + src.Label + ":")
	default:
		p.text("There currently are ").
			bold(strconv.Itoa(n)).
			text(" " + f.cfg.GameShort + " streams on " + src.Label + ". For a full list visit ").
			linkText(src.BrowseURL, src.BrowseURL).
			text(". " + capitalize(spell(f.cfg.MaxItems)) + " most viewed streams:")
	}
}

func item(p *pair, index int, r source.StreamRecord) {
	p.text("Stream #"+strconv.Itoa(index)+": ").
		link(r.Link, func(p *pair) {
			p.text(r.Description + " by ").bold(r.Name)
		})
}

var numberWords = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

func spell(n int) string {
	if n >= 0 && n < len(numberWords) {
		return numberWords[n]
	}
	return strconv.Itoa(n)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
