package date

import (
	"encoding/json"
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		// Note that usually time.Time are not comparable (there is a pointer for the timezone) this
		// tests also checks that the property remain true
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestParse(t *testing.T) {
	testCases := []struct {
		in   string
		want Date
	}{
		{"2025-07-01", New(2025, time.July, 1)},
		{"2025-7-1", New(2025, time.July, 1)},
		{"2025-07-01T10:30:00", New(2025, time.July, 1)},
		{"2025-07-01 23:59:59", New(2025, time.July, 1)},
	}
	for _, tc := range testCases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := Parse("yesterday"); err == nil {
		t.Error("Parse(\"yesterday\") expected an error")
	}
}

func TestBounds(t *testing.T) {
	d := New(2025, time.March, 31)
	if got := d.Start(time.UTC); !got.Equal(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", got)
	}
	end := d.End(time.UTC)
	if Of(end) != d {
		t.Errorf("End() = %v is not on %v", end, d)
	}
	if Of(end.Add(time.Nanosecond)) != New(2025, time.April, 1) {
		t.Errorf("End() + 1ns should be the next day")
	}
}

func TestJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2026-01-16"`), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d != New(2026, time.January, 16) {
		t.Errorf("got %v", d)
	}
	if err := json.Unmarshal([]byte(`""`), &d); err != nil || !d.IsZero() {
		t.Errorf("empty string should decode to the zero date, got %v, %v", d, err)
	}
	b, err := json.Marshal(New(2026, time.January, 16))
	if err != nil || string(b) != `"2026-01-16"` {
		t.Errorf("Marshal = %s, %v", b, err)
	}
}
