package graph

import (
	"testing"
	"time"
)

func TestParseDays(t *testing.T) {
	days, err := ParseDays("1111100")
	if err != nil {
		t.Fatalf("ParseDays: %v", err)
	}
	if !days[0] || !days[4] || days[5] || days[6] {
		t.Fatalf("unexpected mask %v", days)
	}
	for _, bad := range []string{"", "111", "11111002", "111110x"} {
		if _, err := ParseDays(bad); err == nil {
			t.Errorf("ParseDays(%q) expected error", bad)
		}
	}
}

func TestCalendarOperatesOn(t *testing.T) {
	weekdays, _ := ParseDays("1111100")
	cal := Calendar{
		Range:   DateRange{Start: NewDate(2026, 3, 1), End: NewDate(2026, 3, 31)},
		Days:    weekdays,
		Added:   []Date{NewDate(2026, 4, 4)},
		Removed: []Date{NewDate(2026, 3, 10)},
	}
	tests := []struct {
		name string
		date Date
		want bool
	}{
		{"monday in range", NewDate(2026, 3, 2), true},
		{"saturday in range", NewDate(2026, 3, 7), false},
		{"removed tuesday", NewDate(2026, 3, 10), false},
		{"added saturday out of range", NewDate(2026, 4, 4), true},
		{"before range", NewDate(2026, 2, 27), false},
		{"last day", NewDate(2026, 3, 31), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.OperatesOn(tt.date); got != tt.want {
				t.Errorf("OperatesOn(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestDateText(t *testing.T) {
	d, err := ParseDate("2026-10-14")
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "2026-10-14" || d.Weekday() != time.Wednesday {
		t.Fatalf("unexpected date %s %s", d, d.Weekday())
	}
	var back Date
	b, _ := d.MarshalText()
	if err := back.UnmarshalText(b); err != nil || !back.Equal(d) {
		t.Fatalf("text round trip: %v %v", back, err)
	}
	if _, err := ParseDate("14/10/2026"); err == nil {
		t.Fatal("expected parse error")
	}
	if !d.AddDays(1).After(d) || !d.AddDays(-1).Before(d) {
		t.Fatal("AddDays ordering")
	}
}

func TestDepartureOffset(t *testing.T) {
	tests := []struct {
		dep  Departure
		want time.Duration
		str  string
	}{
		{Departure{Minutes: 8 * 60}, 8 * time.Hour, "08:00"},
		{Departure{Minutes: 30, DayOffset: 1}, 24*time.Hour + 30*time.Minute, "00:30+1"},
	}
	for _, tt := range tests {
		if got := tt.dep.Offset(); got != tt.want {
			t.Errorf("Offset(%v) = %v, want %v", tt.dep, got, tt.want)
		}
		if got := tt.dep.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
	}
}
