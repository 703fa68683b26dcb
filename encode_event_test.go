package folio

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestEvent_MarshalJSON(t *testing.T) {
	e := NewDraft(TypeTrade, NewTrade(Buy, "aaa", D(10), D(100))).event(1, time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC))

	got, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	want := `{"event_id":1,"timestamp":"2025-01-02T10:00:00Z","event_type":"TRADE","data":{"action":"BUY","ticker":"AAA","shares":10,"price":100,"total":1000},"affects_cash":true,"cash_delta":-1000}`
	if string(got) != want {
		t.Errorf("json.Marshal() =\n%s\nwant\n%s", got, want)
	}
}

func TestEvent_UnmarshalJSON_Lenient(t *testing.T) {
	testCases := []struct {
		name          string
		line          string
		wantType      EventType
		wantMalformed []string
		check         func(t *testing.T, e Event)
	}{
		{
			name:     "legacy keys and stringified data",
			line:     `{"id":3,"type":"deposit","timestamp":"2025-01-01 09:30:00","data":"{\"amount\":\"250.5\"}","affects_cash":"true","cash_delta":250.5}`,
			wantType: TypeDeposit,
			check: func(t *testing.T, e Event) {
				if e.ID != 3 {
					t.Errorf("ID = %d, want 3", e.ID)
				}
				if want := time.Date(2025, time.January, 1, 9, 30, 0, 0, time.UTC); !e.Timestamp.Equal(want) {
					t.Errorf("Timestamp = %v, want %v", e.Timestamp, want)
				}
				if p := e.Data.(CashFlow); !p.Amount.Equal(D(250.5)) {
					t.Errorf("Amount = %v, want 250.5", p.Amount)
				}
				if !e.AffectsCash || !e.CashConsistent() {
					t.Errorf("AffectsCash = %t, CashDelta = %v", e.AffectsCash, e.CashDelta)
				}
			},
		},
		{
			name:          "malformed fields are zero",
			line:          `{"event_id":4,"timestamp":"2025-01-02T10:00:00Z","event_type":"TRADE","data":{"action":"buy","symbol":"aaa","shares":"ten","price":100}}`,
			wantType:      TypeTrade,
			wantMalformed: []string{"shares"},
			check: func(t *testing.T, e Event) {
				p := e.Data.(Trade)
				if p.Symbol != "AAA" || p.Action != Buy {
					t.Errorf("Trade = %+v, want a BUY of AAA", p)
				}
				if !p.Shares.IsZero() || !p.Price.Equal(D(100)) {
					t.Errorf("Shares = %v, Price = %v, want 0 and 100", p.Shares, p.Price)
				}
			},
		},
		{
			name:     "unknown data fields are kept",
			line:     `{"event_id":5,"timestamp":"2025-01-02T10:00:00Z","event_type":"DIVIDEND","data":{"ticker":"BBB","amount":12,"withholding":3},"reason":"quarterly payout","tags":"income, bbb"}`,
			wantType: TypeDividend,
			check: func(t *testing.T, e Event) {
				if string(e.Extra["withholding"]) != "3" {
					t.Errorf("Extra = %v, want withholding", e.Extra)
				}
				if e.Reason == nil || e.Reason.Explanation != "quarterly payout" {
					t.Errorf("Reason = %+v, want the free text", e.Reason)
				}
				if !slices.Equal(e.Tags, []string{"income", "bbb"}) {
					t.Errorf("Tags = %q, want [income bbb]", e.Tags)
				}
				b, err := e.DataJSON()
				if err != nil {
					t.Fatal(err)
				}
				if want := `{"ticker":"BBB","amount":12,"withholding":3}`; string(b) != want {
					t.Errorf("DataJSON() = %s, want %s", b, want)
				}
			},
		},
		{
			name:          "unparsable timestamp",
			line:          `{"event_id":6,"timestamp":"yesterday","event_type":"NOTE","data":{"text":"hello"}}`,
			wantType:      TypeNote,
			wantMalformed: []string{"timestamp"},
			check: func(t *testing.T, e Event) {
				if !e.Timestamp.IsZero() {
					t.Errorf("Timestamp = %v, want zero", e.Timestamp)
				}
				if p := e.Data.(Info); p.Text != "hello" {
					t.Errorf("Text = %q, want hello", p.Text)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var e Event
			if err := json.Unmarshal([]byte(tc.line), &e); err != nil {
				t.Fatalf("json.Unmarshal() failed: %v", err)
			}
			if e.Type != tc.wantType {
				t.Errorf("Type = %q, want %q", e.Type, tc.wantType)
			}
			if !slices.Equal(e.Malformed, tc.wantMalformed) {
				t.Errorf("Malformed = %q, want %q", e.Malformed, tc.wantMalformed)
			}
			tc.check(t, e)
		})
	}
}

func TestDecodeEvents(t *testing.T) {
	in := strings.Join([]string{
		`{"event_id":1,"timestamp":"2025-01-01","event_type":"DEPOSIT","data":{"amount":100},"affects_cash":true,"cash_delta":100}`,
		``,
		`{"event_id":2,"timestamp":"2025-01-02","event_type":"PRICE_UPDATE","data":{"ticker":"AAA","price":10}}`,
	}, "\n")
	events, err := DecodeEvents(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeEvents() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("DecodeEvents() returned %d events, want 2", len(events))
	}

	var buf bytes.Buffer
	if err := EncodeEvents(&buf, events); err != nil {
		t.Fatal(err)
	}
	again, err := DecodeEvents(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 || again[1].Ticker() != "AAA" {
		t.Errorf("re-decoded events = %v", again)
	}

	t.Run("corrupt line", func(t *testing.T) {
		_, err := DecodeEvents(strings.NewReader(in + "\nnot json"))
		if !errors.Is(err, ErrCorruptLog) {
			t.Errorf("DecodeEvents() error = %v, want ErrCorruptLog", err)
		}
		if err == nil || !strings.Contains(err.Error(), "line 4") {
			t.Errorf("DecodeEvents() error = %v, want the line number", err)
		}
	})
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(TypeOptionOpen, []byte(`{"ticker":"aaa","strike":50,"expiration":"2025-03-21","contracts":2,"premium":300,"position_id":"p1"}`))
	if err != nil {
		t.Fatalf("DecodePayload() failed: %v", err)
	}
	open := p.(OptionOpen)
	if open.Symbol != "AAA" || open.Contracts != 2 || open.PositionID != "p1" || open.Expiration.String() != "2025-03-21" {
		t.Errorf("DecodePayload() = %+v", open)
	}

	for _, bad := range []string{
		`{"ticker":"AAA","premium":"lots"}`,
		`{"ticker":"AAA","colour":"red"}`,
		`[1,2]`,
	} {
		if _, err := DecodePayload(TypeOptionOpen, []byte(bad)); err == nil {
			t.Errorf("DecodePayload(%s) succeeded", bad)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-02T10:00:00Z", time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)},
		{"2025-01-02T10:00:00.5+01:00", time.Date(2025, time.January, 2, 9, 0, 0, 500000000, time.UTC)},
		{"2025-01-02T10:00:00", time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)},
		{"2025-01-02 10:00:00", time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)},
		{"2025-01-02T10:00", time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)},
		{"2025-01-02", time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range testCases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTimestamp("02/01/2025"); err == nil {
		t.Error("ParseTimestamp(02/01/2025) succeeded")
	}
}
