package folio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrCorruptLog is returned when a log line is not a JSON object.
var ErrCorruptLog = errors.New("corrupt event log")

// TimestampFormat is the format timestamps are written with.
const TimestampFormat = time.RFC3339Nano

// timestampFormats are tried in order when reading a timestamp. Naive
// timestamps are read in UTC.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp leniently.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// DataJSON returns the canonical JSON object of the event payload.
func (e Event) DataJSON() ([]byte, error) {
	var w jsonObjectWriter
	if e.Data != nil {
		e.Data.appendTo(&w)
	}
	for _, key := range slices.Sorted(maps.Keys(e.Extra)) {
		w.Append(key, e.Extra[key])
	}
	return w.MarshalJSON()
}

// MarshalJSON writes the fixed fields in a stable order followed by the
// payload, so that two equal events always produce the same line.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := e.DataJSON()
	if err != nil {
		return nil, fmt.Errorf("event %d: cannot serialize data: %w", e.ID, err)
	}
	var w jsonObjectWriter
	w.Append("event_id", e.ID)
	w.Append("timestamp", e.Timestamp.Format(TimestampFormat))
	w.Append("event_type", e.Type)
	w.Append("data", json.RawMessage(data))
	if e.Reason != nil {
		w.Append("reason", e.Reason)
	}
	w.Optional("notes", e.Notes)
	w.Optional("tags", e.Tags)
	w.Append("affects_cash", e.AffectsCash)
	w.Append("cash_delta", e.CashDelta)
	w.Optional("is_deleted", e.IsDeleted)
	return w.MarshalJSON()
}

// UnmarshalJSON reads an event leniently: missing or malformed fields are
// zero. Structured fields encoded as JSON strings are unwrapped.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptLog, err)
	}
	top := &fieldReader{m: raw}

	*e = Event{
		ID:          top.num("event_id", "id"),
		Type:        EventType(strings.ToUpper(strings.TrimSpace(top.str("event_type", "type")))),
		Notes:       top.str("notes"),
		AffectsCash: top.flag("affects_cash"),
		CashDelta:   top.dec("cash_delta"),
		IsDeleted:   top.flag("is_deleted"),
	}
	if ts := top.str("timestamp"); ts != "" {
		t, err := ParseTimestamp(ts)
		if err != nil {
			top.bad = append(top.bad, "timestamp")
		}
		e.Timestamp = t
	}

	data := map[string]json.RawMessage{}
	if rawData, ok := top.take("data"); ok {
		if err := json.Unmarshal(unwrapString(rawData), &data); err != nil {
			top.bad = append(top.bad, "data")
		}
	}
	f := &fieldReader{m: data}
	e.Data = decodePayload(e.Type, f)
	if len(f.m) > 0 {
		e.Extra = f.m
	}

	if rawReason, ok := top.take("reason"); ok {
		e.Reason = decodeReason(rawReason)
	}
	if rawTags, ok := top.take("tags"); ok {
		e.Tags = decodeTags(rawTags)
	}
	e.Malformed = append(top.bad, f.bad...)
	return nil
}

// DecodePayload decodes the data object of an event of type t. Unknown
// fields are an error.
func DecodePayload(t EventType, b []byte) (Payload, error) {
	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("invalid %s data: %w", t, err)
	}
	f := &fieldReader{m: data}
	p := decodePayload(t, f)
	if len(f.bad) > 0 {
		return nil, fmt.Errorf("invalid %s data fields: %s", t, strings.Join(f.bad, ", "))
	}
	if len(f.m) > 0 {
		return nil, fmt.Errorf("unknown %s data fields: %s", t, strings.Join(slices.Sorted(maps.Keys(f.m)), ", "))
	}
	return p, nil
}

// unwrapString returns the content of a JSON string holding JSON, or raw as is.
func unwrapString(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	return json.RawMessage(s)
}

func decodeReason(raw json.RawMessage) *Reason {
	raw = unwrapString(raw)
	var r Reason
	if err := json.Unmarshal(raw, &r); err == nil {
		if r.Primary == "" && r.Explanation == "" && len(r.Insight) == 0 {
			return nil
		}
		return &r
	}
	// A reason that is not an object is free text.
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil
	}
	return &Reason{Explanation: text}
}

func decodeTags(raw json.RawMessage) []string {
	raw = unwrapString(raw)
	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags
	}
	// a comma separated list
	for _, t := range strings.Split(string(raw), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// DecodeEvents reads a JSONL stream of events in file order. Empty lines are
// skipped.
func DecodeEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue
		}
		var e Event
		if err := e.UnmarshalJSON(lineBytes); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return events, nil
}

// EncodeEvent marshals a single event and writes it as one JSONL line.
func EncodeEvent(w io.Writer, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %d: %w", e.ID, err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write event %d: %w", e.ID, err)
	}
	return nil
}

// EncodeEvents writes events in the given order.
func EncodeEvents(w io.Writer, events []Event) error {
	for _, e := range events {
		if err := EncodeEvent(w, e); err != nil {
			return err
		}
	}
	return nil
}
