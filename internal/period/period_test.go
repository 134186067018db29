package period

import (
	"errors"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		year, month int
		want        Key
		ok          bool
	}{
		{2024, 6, "062024", true},
		{2024, 12, "122024", true},
		{1970, 1, "011970", true},
		{2024, 0, "", false},
		{2024, 13, "", false},
		{1969, 5, "", false},
	}
	for _, tc := range cases {
		got, err := Encode(tc.year, tc.month)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("Encode(%d, %d) = %q, %v; want %q", tc.year, tc.month, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("Encode(%d, %d) expected ErrInvalidPeriod, got %v", tc.year, tc.month, err)
		}
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		in          Key
		year, month int
		ok          bool
	}{
		{"062024", 2024, 6, true},
		{"102023", 2023, 10, true},
		{"011970", 1970, 1, true},
		{"002024", 0, 0, false},
		{"132024", 0, 0, false},
		{"061969", 0, 0, false},
		{"62024", 0, 0, false},
		{"0620245", 0, 0, false},
		{"06202a", 0, 0, false},
		{"+62024", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		y, m, err := Decode(tc.in)
		if tc.ok {
			if err != nil || y != tc.year || m != tc.month {
				t.Fatalf("Decode(%q) = %d, %d, %v; want %d, %d", tc.in, y, m, err, tc.year, tc.month)
			}
			continue
		}
		if !errors.Is(err, ErrMalformedKey) {
			t.Fatalf("Decode(%q) expected ErrMalformedKey, got %v", tc.in, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for year := 1970; year <= 2100; year += 7 {
		for month := 1; month <= 12; month++ {
			k, err := Encode(year, month)
			if err != nil {
				t.Fatalf("Encode(%d, %d): %v", year, month, err)
			}
			y, m, err := Decode(k)
			if err != nil || y != year || m != month {
				t.Fatalf("round trip %d/%d via %q gave %d/%d (err=%v)", year, month, k, y, m, err)
			}
		}
	}
}

func TestFromTimeAndCurrent(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	// 2024-06-30 23:30 UTC is already July in UTC+2
	ts := time.Date(2024, 6, 30, 23, 30, 0, 0, time.UTC)
	if got := FromTime(ts.In(loc)); got != "072024" {
		t.Fatalf("FromTime = %q, want 072024", got)
	}
	if got := FromMillis(ts.UnixMilli(), time.UTC); got != "062024" {
		t.Fatalf("FromMillis = %q, want 062024", got)
	}
	if err := Current().Validate(); err != nil {
		t.Fatalf("Current() not valid: %v", err)
	}
}

func TestPreviousNextAndLabel(t *testing.T) {
	k := MustEncode(2024, 1)
	prev, err := k.Previous()
	if err != nil || prev != "122023" {
		t.Fatalf("Previous = %q, %v", prev, err)
	}
	next, err := MustEncode(2024, 12).Next()
	if err != nil || next != "012025" {
		t.Fatalf("Next = %q, %v", next, err)
	}
	if got := k.Label(); got != "January 2024" {
		t.Fatalf("Label = %q", got)
	}
	if k.Year() != 2024 || k.Month() != 1 {
		t.Fatalf("Year/Month = %d/%d", k.Year(), k.Month())
	}
	if Key("bad").Month() != 0 {
		t.Fatalf("expected 0 month for malformed key")
	}
}

func TestParse(t *testing.T) {
	if k, err := Parse(" 062024 "); err != nil || k != "062024" {
		t.Fatalf("Parse = %q, %v", k, err)
	}
	if _, err := Parse("2024-06"); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
}
