package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize decodes a raw listing document into stream records in payload order.
// A missing listing field yields no records. Entries without a channel object
// are skipped; missing leaf fields fall back to NotAvailable or zero viewers.
func Normalize(cfg Config, raw []byte) ([]StreamRecord, error) {
	if !utf8.Valid(raw) {
		return nil, &DecodeError{Source: cfg.ID, Err: errors.New("payload is not valid UTF-8")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &DecodeError{Source: cfg.ID, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodeError{Source: cfg.ID, Err: errors.New("trailing data after JSON document")}
	}
	if doc == nil {
		return nil, &DecodeError{Source: cfg.ID, Err: errors.New("payload is not a JSON object")}
	}

	listing, ok := doc[cfg.ListingField]
	if !ok || listing == nil {
		return []StreamRecord{}, nil
	}
	entries, ok := listing.([]any)
	if !ok {
		return nil, &DecodeError{Source: cfg.ID, Err: fmt.Errorf("field %q is %T, want array", cfg.ListingField, listing)}
	}

	channelField := cfg.ChannelField
	if channelField == "" {
		channelField = "channel"
	}

	records := make([]StreamRecord, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		channel, ok := entry[channelField].(map[string]any)
		if !ok || len(channel) == 0 {
			continue
		}
		records = append(records, StreamRecord{
			Name:        text(lookup(entry, cfg.Fields.Name)),
			Description: text(lookup(entry, cfg.Fields.Description)),
			Link:        text(lookup(entry, cfg.Fields.Link)),
			Viewers:     count(lookup(entry, cfg.Fields.Viewers)),
		})
	}
	return records, nil
}

// lookup walks a dotted path through nested objects.
func lookup(obj map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[key]; !ok {
			return nil
		}
	}
	return cur
}

// text renders a leaf value as a single line of printable text. Control
// characters are dropped so listing data cannot break chat line framing.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return StripControl(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return NotAvailable
}

// count accepts JSON numbers and numeric strings; anything else is zero.
func count(v any) int {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// StripControl removes every Unicode control character from s.
func StripControl(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
