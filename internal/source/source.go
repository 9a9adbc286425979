// Package source fetches remote live-stream listings and normalizes them into
// StreamRecords. Every source runs through the same pipeline; what differs
// between them is captured by Config.
package source

import (
	"time"
)

// NotAvailable is the placeholder for missing text fields.
const NotAvailable = "N/A"

// DefaultTimeout bounds a single listing fetch.
const DefaultTimeout = 10 * time.Second

// StreamRecord is one live stream as reported by a source.
type StreamRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Viewers     int    `json:"viewers"`
}

// Fields maps StreamRecord fields to dotted paths inside a listing entry.
// A path starting with the channel field name (e.g. "channel.url") is resolved
// inside the nested channel object.
type Fields struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	Viewers     string `yaml:"viewers"`
}

// Config describes one listing source.
type Config struct {
	ID           string        `yaml:"id"`
	Label        string        `yaml:"label"`
	URL          string        `yaml:"url"`
	BrowseURL    string        `yaml:"browse_url"`
	Timeout      time.Duration `yaml:"timeout"`
	ListingField string        `yaml:"listing_field"`
	ChannelField string        `yaml:"channel_field"`
	Fields       Fields        `yaml:"fields"`
}

// Result is the ranked outcome of one source for one aggregation.
// Records is empty, never nil-vs-partial, when Err is set.
type Result struct {
	Source  Config
	Records []StreamRecord
	Err     error
}

// OK reports whether the source contributed a listing.
func (r Result) OK() bool { return r.Err == nil }

// Defaults returns the stock Twitch and Hitbox sources.
func Defaults() []Config {
	return []Config{
		{
			ID:           "twitch",
			Label:        "Twitch.tv",
			URL:          "https://api.twitch.tv/kraken/streams?game=Planetary+Annihilation",
			BrowseURL:    "http://www.twitch.tv/directory/game/Planetary%20Annihilation",
			Timeout:      DefaultTimeout,
			ListingField: "streams",
			ChannelField: "channel",
			Fields: Fields{
				Name:        "channel.display_name",
				Description: "channel.status",
				Link:        "channel.url",
				Viewers:     "viewers",
			},
		},
		{
			ID:           "hitbox",
			Label:        "Hitbox.tv",
			URL:          "https://www.hitbox.tv/api/media/live/list?game=828&liveOnly=true&showHidden=false",
			BrowseURL:    "http://www.hitbox.tv/browse/planetary-annihilation",
			Timeout:      DefaultTimeout,
			ListingField: "livestream",
			ChannelField: "channel",
			Fields: Fields{
				Name:        "media_display_name",
				Description: "media_status",
				Link:        "channel.channel_link",
				Viewers:     "media_views",
			},
		},
	}
}
