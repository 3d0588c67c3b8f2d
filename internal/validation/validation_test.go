package validation

import (
	"errors"
	"testing"
	"time"
)

func TestIsValidAddress(t *testing.T) {
	valid := []string{
		"0x52908400098527886e0f7030069857d2e4169ee7",
		"0xDE709F2102306220921060314715629080E2FB77",
		"0x0000000000000000000000000000000000000001",
	}
	for _, a := range valid {
		if !IsValidAddress(a) {
			t.Fatalf("IsValidAddress(%q) = false, want true", a)
		}
	}

	invalid := []string{
		"",
		"0x",
		"52908400098527886e0f7030069857d2e4169ee7",
		"0x52908400098527886e0f7030069857d2e4169ee",
		"0x52908400098527886e0f7030069857d2e4169ee7a",
		"0xg2908400098527886e0f7030069857d2e4169ee7",
	}
	for _, a := range invalid {
		if IsValidAddress(a) {
			t.Fatalf("IsValidAddress(%q) = true, want false", a)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("  0xDE709F2102306220921060314715629080E2FB77 ")
	want := "0xde709f2102306220921060314715629080e2fb77"
	if got != want {
		t.Fatalf("NormalizeAddress = %q, want %q", got, want)
	}
}

func TestParseTimestamp_RFC3339(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-15T10:30:00+03:00")
	if err != nil {
		t.Fatalf("ParseTimestamp error: %v", err)
	}
	want := time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("ParseTimestamp = %v, want %v", ts, want)
	}
	if ts.Location() != time.UTC {
		t.Fatalf("timestamp not normalized to UTC")
	}
}

func TestParseTimestamp_EpochMillis(t *testing.T) {
	ts, err := ParseTimestamp("1710498600000")
	if err != nil {
		t.Fatalf("ParseTimestamp error: %v", err)
	}
	if ts.UnixMilli() != 1710498600000 {
		t.Fatalf("ParseTimestamp millis = %d, want 1710498600000", ts.UnixMilli())
	}
}

func TestParseTimestamp_Rejected(t *testing.T) {
	bad := []string{
		"",
		"15.03.2024 10:30",
		"2024-03-15",
		"-1000",
		"yesterday",
	}
	for _, raw := range bad {
		if _, err := ParseTimestamp(raw); !errors.Is(err, ErrBadTimestamp) {
			t.Fatalf("ParseTimestamp(%q) err = %v, want ErrBadTimestamp", raw, err)
		}
	}
}
