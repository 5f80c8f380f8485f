package fetcher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffSchedule(t *testing.T) {
	noJitter := func(time.Duration) time.Duration { return 0 }
	bo := newBackoff(2*time.Second, 30*time.Second, noJitter)

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, bo.next())
	}

	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	bo := newBackoff(time.Second, time.Minute, nil)
	for i := 0; i < 5; i++ {
		d := bo.next()
		base := time.Duration(1<<i) * time.Second
		if d < base || d > base+base/5 {
			t.Errorf("delay %v outside [%v, %v]", d, base, base+base/5)
		}
	}
}
