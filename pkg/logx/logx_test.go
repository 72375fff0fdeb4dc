package logx

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARNING ", LevelWarn},
		{"Error", LevelError},
		{"", LevelInfo},
		{"loud", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in, LevelInfo); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	line := `{"level":"warn","time":"x","message":"delivery failed","owner":42,"comp":"scheduler"}`
	got := formatChatLine([]byte(line))
	want := "[WARN] delivery failed\n- comp=scheduler\n- owner=42"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}

	if got := formatChatLine([]byte("  not json \n")); got != "not json" {
		t.Fatalf("raw line = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 50)
	if got := truncate(long, 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger not IsZero")
	}
	l.With(String("k", "v")).Info("discarded")
	if Nop().IsZero() {
		t.Fatal("Nop should not be IsZero")
	}
}
