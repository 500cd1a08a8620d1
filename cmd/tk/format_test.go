package main

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatHours(t *testing.T) {
	if got := formatHours(decimal.RequireFromString("7.500000")); got != "7.5" {
		t.Errorf("formatHours = %q, want 7.5", got)
	}
	if got := formatHours(decimal.NewFromInt(8)); got != "8" {
		t.Errorf("formatHours = %q, want 8", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		sec  int64
		want string
	}{
		{0, "0:00:00"},
		{59, "0:00:59"},
		{3661, "1:01:01"},
		{43200, "12:00:00"},
		{-5, "0:00:00"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.sec); got != tt.want {
			t.Errorf("formatElapsed(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a much longer description", 10); got != "a much ..." {
		t.Errorf("truncate = %q, want %q", got, "a much ...")
	}
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("truncate multibyte = %q", got)
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "abc", ""} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) should fail", bad)
		}
	}
}
