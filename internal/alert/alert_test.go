package alert

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantLen int
	}{
		{"short untouched", "page 3 fetch failed", 19},
		{"exactly at cap", strings.Repeat("a", maxMessageLength), maxMessageLength},
		{"over cap", strings.Repeat("a", maxMessageLength+100), maxMessageLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.message)
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// A euro sign straddling the cut point must be dropped whole.
	message := strings.Repeat("a", maxMessageLength-1) + "€€€"
	got := truncate(message)
	if len(got) > maxMessageLength {
		t.Fatalf("len = %d, exceeds cap", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
}

func TestLogSinkNeverFails(t *testing.T) {
	sink := NewLogSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := sink.Send(context.Background(), "cycle aborted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
