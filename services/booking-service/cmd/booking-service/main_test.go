package main

import (
	"testing"
	"time"
)

func TestParseReminderOffsets(t *testing.T) {
	got := parseReminderOffsets("24h, 2h,30m")
	want := []time.Duration{24 * time.Hour, 2 * time.Hour, 30 * time.Minute}
	if len(got) != len(want) {
		t.Fatalf("got %d offsets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("offset[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseReminderOffsetsSkipsInvalid(t *testing.T) {
	got := parseReminderOffsets("nope,-1h,,2h")
	if len(got) != 1 || got[0] != 2*time.Hour {
		t.Fatalf("got %v, want [2h]", got)
	}
}
