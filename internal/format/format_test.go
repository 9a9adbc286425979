package format

import (
	"fmt"
	"regexp"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/source"
)

func records(n int) []source.StreamRecord {
	out := make([]source.StreamRecord, n)
	for i := range out {
		out[i] = source.StreamRecord{
			Name:        fmt.Sprintf("caster%d", i+1),
			Description: fmt.Sprintf("Game\nnight #%d", i+1),
			Link:        fmt.Sprintf("http://twitch.tv/caster%d", i+1),
			Viewers:     100 - i,
		}
	}
	return out
}

func assertParity(t *testing.T, msgs ...message.Outgoing) {
	t.Helper()
	for _, m := range msgs {
		plain, err := PlainText(m.Markup)
		require.NoError(t, err)
		assert.Equal(t, m.Plain, plain, "markup: %s", m.Markup)
	}
}

func TestSummaryBanners(t *testing.T) {
	src := source.Defaults()[0]
	f := New(Config{})

	tests := []struct {
		n          int
		wantPlain  string
		wantMarkup string
		wantItems  int
	}{
		{
			n:          0,
			wantPlain:  "There are no Planetary Annihilation streams on Twitch.tv (http://www.twitch.tv/directory/game/Planetary%20Annihilation) at the moment.",
			wantMarkup: `There are no Planetary Annihilation streams on <a href="http://www.twitch.tv/directory/game/Planetary%20Annihilation">Twitch.tv</a> at the moment.`,
		},
		{
			n:          1,
			wantPlain:  "There currently is one PA stream on Twitch.tv:",
			wantMarkup: "There currently is <strong>one</strong> PA stream on Twitch.tv:",
			wantItems:  1,
		},
		{
			n:          2,
			wantPlain:  "There currently are 2 PA streams on Twitch.tv:",
			wantMarkup: "There currently are <strong>2</strong> PA streams on Twitch.tv:",
			wantItems:  2,
		},
		{
			n:          5,
			wantPlain:  "There currently are 5 PA streams on Twitch.tv:",
			wantMarkup: "There currently are <strong>5</strong> PA streams on Twitch.tv:",
			wantItems:  5,
		},
		{
			n:          6,
			wantPlain:  "There currently are 6 PA streams on Twitch.tv. For a full list visit http://www.twitch.tv/directory/game/Planetary%20Annihilation. Five most viewed streams:",
			wantMarkup: `There currently are <strong>6</strong> PA streams on Twitch.tv. For a full list visit <a href="http://www.twitch.tv/directory/game/Planetary%20Annihilation">http://www.twitch.tv/directory/game/Planetary%20Annihilation</a>. Five most viewed streams:`,
			wantItems:  5,
		},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			msgs := f.Summary(src, records(tt.n))
			require.Len(t, msgs, tt.wantItems+1)
			assert.Equal(t, tt.wantPlain, msgs[0].Plain)
			assert.Equal(t, tt.wantMarkup, msgs[0].Markup)
			assertParity(t, msgs...)
		})
	}
}

func TestSummaryItems(t *testing.T) {
	msgs := New(Config{}).Summary(source.Defaults()[0], records(7))
	require.Len(t, msgs, 6)

	assert.Equal(t, "Stream #1: Gamenight #1 by caster1 (http://twitch.tv/caster1)", msgs[1].Plain)
	assert.Equal(t, `Stream #1: <a href="http://twitch.tv/caster1">Gamenight #1 by <strong>caster1</strong></a>`, msgs[1].Markup)
	assert.Equal(t, "Stream #5: Gamenight #5 by caster5 (http://twitch.tv/caster5)", msgs[5].Plain)
	for _, m := range msgs[1:] {
		assert.NotContains(t, m.Plain, "\n")
	}
}

func TestSummaryEscapesMarkup(t *testing.T) {
	recs := []source.StreamRecord{{
		Name:        `<b>"Zed" & co</b>`,
		Description: "1v1 <ranked>\r\n & chill",
		Link:        `http://example.com/?a=1&b="2"`,
	}}
	msgs := New(Config{}).Summary(source.Defaults()[1], recs)
	require.Len(t, msgs, 2)

	assert.Equal(t, `Stream #1: 1v1 <ranked> & chill by <b>"Zed" & co</b> (http://example.com/?a=1&b="2")`, msgs[1].Plain)
	assert.NotContains(t, msgs[1].Markup, "<ranked>")
	assert.NotContains(t, msgs[1].Markup, "<b>")
	assertParity(t, msgs...)
}

func TestSummaryDropsControlCharacters(t *testing.T) {
	recs := []source.StreamRecord{{
		Name:        "a\rb",
		Description: "d\x00",
		Link:        "http://x/\r\nPRIVMSG",
	}}
	msgs := New(Config{}).Summary(source.Defaults()[0], recs)
	require.Len(t, msgs, 2)

	assert.Equal(t, "Stream #1: d by ab (http://x/PRIVMSG)", msgs[1].Plain)
	assert.Equal(t, `Stream #1: <a href="http://x/PRIVMSG">d by <strong>ab</strong></a>`, msgs[1].Markup)
	assertParity(t, msgs...)
}

func TestSummaryDefaultsForMissingFields(t *testing.T) {
	recs := []source.StreamRecord{{Name: source.NotAvailable, Description: source.NotAvailable, Link: source.NotAvailable}}
	msgs := New(Config{}).Summary(source.Defaults()[0], recs)

	assert.Equal(t, "Stream #1: N/A by N/A (N/A)", msgs[1].Plain)
	assertParity(t, msgs...)
}

func TestSummaryCombinedLayout(t *testing.T) {
	f := New(Config{Layout: LayoutCombined})

	msgs := f.Summary(source.Defaults()[0], records(3))
	require.Len(t, msgs, 1)
	assert.Equal(t,
		"There currently are 3 PA streams on Twitch.tv:\n"+
			"Stream #1: Gamenight #1 by caster1 (http://twitch.tv/caster1)\n"+
			"Stream #2: Gamenight #2 by caster2 (http://twitch.tv/caster2)\n"+
			"Stream #3: Gamenight #3 by caster3 (http://twitch.tv/caster3)",
		msgs[0].Plain)
	assert.Contains(t, msgs[0].Markup, "<br/>")
	assertParity(t, msgs...)

	assert.Len(t, f.Summary(source.Defaults()[0], nil), 1)
}

func TestSummaryCustomMaxItems(t *testing.T) {
	f := New(Config{MaxItems: 3})
	msgs := f.Summary(source.Defaults()[0], records(4))

	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Plain, "Three most viewed streams:")
}

func TestLiveKeepsSourceOrder(t *testing.T) {
	sources := source.Defaults()
	results := []source.Result{
		{Source: sources[0], Records: records(7)},
		{Source: sources[1], Records: []source.StreamRecord{}, Err: fmt.Errorf("boom")},
	}

	msgs := New(Config{}).Live(results)
	require.Len(t, msgs, 7)
	assert.Contains(t, msgs[0].Plain, "There currently are 7 PA streams on Twitch.tv.")
	assert.Contains(t, msgs[0].Plain, "Five most viewed")
	assert.Contains(t, msgs[6].Plain, "There are no Planetary Annihilation streams on Hitbox.tv")
	assertParity(t, msgs...)
}

func TestNow(t *testing.T) {
	pacific, err := time.LoadLocation(DefaultZone)
	require.NoError(t, err)
	f := New(Config{Location: pacific})

	at := time.Date(2024, 1, 1, 12, 0, 0, 987654321, time.UTC)
	msg := f.Now(at)

	assert.Equal(t, "It is now 2024-01-01 12:00:00+00:00 (UTC) / 2024-01-01 04:00:00-08:00 (Ubertime)", msg.Plain)
	assert.Equal(t, "It is now <strong>2024-01-01 12:00:00+00:00</strong> (UTC) / <strong>2024-01-01 04:00:00-08:00</strong> (Ubertime)", msg.Markup)
	assertParity(t, msg)
}

func TestNowStructureAcrossDST(t *testing.T) {
	pacific, err := time.LoadLocation(DefaultZone)
	require.NoError(t, err)
	f := New(Config{Location: pacific})

	pattern := regexp.MustCompile(`^It is now (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\+00:00 \(UTC\) / (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})(-0[78]:00) \(Ubertime\)$`)
	for _, at := range []time.Time{
		time.Date(2024, 7, 4, 18, 30, 15, 0, time.UTC),
		time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 3, 9, 0, 0, 0, time.UTC),
	} {
		msg := f.Now(at)
		m := pattern.FindStringSubmatch(msg.Plain)
		require.NotNil(t, m, msg.Plain)

		local, err := time.Parse("2006-01-02 15:04:05-07:00", m[2]+m[3])
		require.NoError(t, err)
		assert.True(t, local.Equal(at), "local %s should equal %s", local, at)
		assertParity(t, msg)
	}
}

func TestNowDefaultsToUTC(t *testing.T) {
	msg := New(Config{ZoneLabel: "Zulu"}).Now(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "It is now 2024-01-01 12:00:00+00:00 (UTC) / 2024-01-01 12:00:00+00:00 (Zulu)", msg.Plain)
}

func TestLayoutValid(t *testing.T) {
	assert.True(t, LayoutPerItem.Valid())
	assert.True(t, LayoutCombined.Valid())
	assert.False(t, Layout("stacked").Valid())
}
