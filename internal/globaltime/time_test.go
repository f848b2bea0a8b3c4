package globaltime

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	pinned := time.Date(2026, 10, 1, 12, 0, 0, 0, time.FixedZone("X", 2*3600))
	SetMockTime(pinned)
	defer ResetTime()

	if !Now().Equal(pinned) {
		t.Fatalf("unexpected pinned time: got %s want %s", Now(), pinned)
	}
	if UTC().Location() != time.UTC || UTC().Hour() != 10 {
		t.Fatalf("unexpected UTC conversion: %s", UTC())
	}

	if got := Since(pinned.Add(-90 * time.Second)); got != 90*time.Second {
		t.Fatalf("unexpected elapsed time: got %s want 90s", got)
	}

	ResetTime()
	if Now().Equal(pinned) {
		t.Fatalf("reset should restore the wall clock")
	}
}
