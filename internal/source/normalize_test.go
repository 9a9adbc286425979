package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twitchConfig() Config { return Defaults()[0] }
func hitboxConfig() Config { return Defaults()[1] }

func TestNormalizeTwitch(t *testing.T) {
	raw := []byte(`{"streams":[
		{"viewers":12,"channel":{"display_name":"Alpha","status":"Ranked\ngames","url":"http://twitch.tv/alpha"}},
		{"viewers":3},
		{"viewers":40,"channel":{"display_name":"Bravo"}}
	]}`)

	records, err := Normalize(twitchConfig(), raw)
	require.NoError(t, err)
	assert.Equal(t, []StreamRecord{
		{Name: "Alpha", Description: "Rankedgames", Link: "http://twitch.tv/alpha", Viewers: 12},
		{Name: "Bravo", Description: NotAvailable, Link: NotAvailable, Viewers: 40},
	}, records)
}

func TestNormalizeHitbox(t *testing.T) {
	raw := []byte(`{"livestream":[
		{"media_display_name":"Charlie","media_status":"casting","media_views":"17","channel":{"channel_link":"http://hitbox.tv/charlie"}},
		{"media_display_name":"Delta","channel":null},
		{"media_display_name":"Echo","channel":{}}
	]}`)

	records, err := Normalize(hitboxConfig(), raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StreamRecord{Name: "Charlie", Description: "casting", Link: "http://hitbox.tv/charlie", Viewers: 17}, records[0])
}

func TestNormalizeMissingListingField(t *testing.T) {
	for _, raw := range []string{`{}`, `{"livestream":[]}`, `{"streams":null}`} {
		records, err := Normalize(twitchConfig(), []byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, records, raw)
	}
}

func TestNormalizeDecodeErrors(t *testing.T) {
	tests := map[string][]byte{
		"invalid json":   []byte(`{"streams":[`),
		"not an object":  []byte(`[1,2,3]`),
		"null document":  []byte(`null`),
		"listing scalar": []byte(`{"streams":"none"}`),
		"bad utf8":       {'{', 0xff, '}'},
		"trailing data":  []byte(`{"streams":[]} junk`),
		"second value":   []byte(`{"streams":[]}{}`),
		"stray brace":    []byte(`{"streams":[]} }`),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			records, err := Normalize(twitchConfig(), raw)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "twitch", de.Source)
			assert.Empty(t, records)
		})
	}
}

func TestNormalizeViewerCounts(t *testing.T) {
	raw := []byte(`{"streams":[
		{"viewers":-5,"channel":{"x":1}},
		{"viewers":"many","channel":{"x":1}},
		{"viewers":7.9,"channel":{"x":1}},
		{"viewers":" 21 ","channel":{"x":1}}
	]}`)

	records, err := Normalize(twitchConfig(), raw)
	require.NoError(t, err)
	var got []int
	for _, r := range records {
		got = append(got, r.Viewers)
	}
	assert.Equal(t, []int{0, 0, 7, 21}, got)
}

func TestNormalizeSkipsNonObjectEntries(t *testing.T) {
	raw := []byte(`{"streams":[42,"x",{"viewers":1,"channel":{"display_name":"Foxtrot"}}]}`)

	records, err := Normalize(twitchConfig(), raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Foxtrot", records[0].Name)
}

func TestNormalizeAllowsTrailingWhitespace(t *testing.T) {
	records, err := Normalize(twitchConfig(), []byte("{\"streams\":[]}\n\t "))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNormalizeStripsControlCharacters(t *testing.T) {
	raw := []byte(`{"streams":[{"viewers":1,"channel":{
		"display_name":"evil\rPRIVMSG #other :spam",
		"status":"line\u0000one\r\ntwo",
		"url":"http://x/\u0001ACTION"
	}}]}`)

	records, err := Normalize(twitchConfig(), raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StreamRecord{
		Name:        "evilPRIVMSG #other :spam",
		Description: "lineonetwo",
		Link:        "http://x/ACTION",
		Viewers:     1,
	}, records[0])
}

func TestStripControl(t *testing.T) {
	tests := map[string]string{
		"plain":           "plain",
		"a\rb\nc\x00d\te": "abcde",
		"\x7fdel\u0085":   "del",
		"ünïcode ☃":       "ünïcode ☃",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripControl(in), "input %q", in)
	}
}
