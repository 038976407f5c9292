package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("PARABOLA_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("PARABOLA_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 3},
		{"5", 5},
		{"0", 0},
		{"-1", 3},
		{"three", 3},
	}
	for _, tt := range tests {
		t.Setenv("PARABOLA_TEST_INT", tt.value)
		if got := ParseIntEnv("PARABOLA_TEST_INT", 3); got != tt.want {
			t.Errorf("ParseIntEnv(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	def := time.Second
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", def},
		{"1500", 1500 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"0", def},
		{"-3s", def},
		{"soon", def},
	}
	for _, tt := range tests {
		t.Setenv("PARABOLA_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("PARABOLA_TEST_DURATION", def); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("PARABOLA_TEST_STR", "")
	if got := GetEnvDefault("PARABOLA_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	t.Setenv("PARABOLA_TEST_STR", " value ")
	if got := GetEnvDefault("PARABOLA_TEST_STR", "fallback"); got != "value" {
		t.Errorf("expected trimmed value, got %q", got)
	}
}
