package availability

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func values(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Value)
	}
	return out
}

func TestGenerateSlotsFutureDateFullWindow(t *testing.T) {
	now := day(2026, time.March, 10, 15, 45)
	selected := day(2026, time.March, 12, 0, 0)

	slots := GenerateSlots(selected, now)
	if len(slots) != 13 {
		t.Fatalf("len = %d, want 13", len(slots))
	}
	if slots[0].Value != "08:00" || slots[len(slots)-1].Value != "20:00" {
		t.Fatalf("window = %s..%s, want 08:00..20:00", slots[0].Value, slots[len(slots)-1].Value)
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Value <= slots[i-1].Value {
			t.Fatalf("slots not strictly ascending at %d: %s then %s", i, slots[i-1].Value, slots[i].Value)
		}
	}
}

func TestGenerateSlotsSameDayCutoff(t *testing.T) {
	selected := day(2026, time.March, 10, 0, 0)
	tests := []struct {
		name  string
		now   time.Time
		first string
		count int
	}{
		{"mid-morning half hour", day(2026, time.March, 10, 10, 30), "11:00", 10},
		{"exactly on the hour still advances", day(2026, time.March, 10, 10, 0), "11:00", 10},
		{"before opening floors at 08:00", day(2026, time.March, 10, 6, 15), "08:00", 13},
		{"late evening leaves only closing slot", day(2026, time.March, 10, 19, 30), "20:00", 1},
		{"noon", day(2026, time.March, 10, 12, 0), "13:00", 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slots := GenerateSlots(selected, tc.now)
			if len(slots) != tc.count {
				t.Fatalf("len = %d, want %d (%v)", len(slots), tc.count, values(slots))
			}
			if slots[0].Value != tc.first {
				t.Fatalf("first = %s, want %s", slots[0].Value, tc.first)
			}
			if slots[len(slots)-1].Value != "20:00" {
				t.Fatalf("last = %s, want 20:00", slots[len(slots)-1].Value)
			}
		})
	}
}

func TestGenerateSlotsNoAvailability(t *testing.T) {
	selected := day(2026, time.March, 10, 0, 0)
	for _, now := range []time.Time{
		day(2026, time.March, 10, 20, 1),
		day(2026, time.March, 10, 20, 0),
		day(2026, time.March, 10, 23, 59),
	} {
		if got := GenerateSlots(selected, now); len(got) != 0 {
			t.Fatalf("now=%v: got %v, want empty", now, values(got))
		}
	}
}

func TestGenerateSlotsAbsentDate(t *testing.T) {
	if got := GenerateSlots(time.Time{}, day(2026, time.March, 10, 9, 0)); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	selected := day(2026, time.March, 10, 0, 0)
	now := day(2026, time.March, 10, 14, 20)
	a := GenerateSlots(selected, now)
	b := GenerateSlots(selected, now)
	if len(a) != len(b) {
		t.Fatalf("len mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSlotLabels(t *testing.T) {
	slots := GenerateSlots(day(2026, time.March, 12, 0, 0), day(2026, time.March, 10, 9, 0))
	want := map[string]string{
		"08:00": "8:00 AM",
		"11:00": "11:00 AM",
		"12:00": "12:00 PM",
		"13:00": "1:00 PM",
		"20:00": "8:00 PM",
	}
	for _, s := range slots {
		if label, ok := want[s.Value]; ok && s.Label != label {
			t.Errorf("label for %s = %q, want %q", s.Value, s.Label, label)
		}
	}
}

func TestContains(t *testing.T) {
	slots := GenerateSlots(day(2026, time.March, 12, 0, 0), day(2026, time.March, 10, 9, 0))
	if !Contains(slots, "14:00") {
		t.Fatal("expected 14:00 in full window")
	}
	if Contains(slots, "21:00") {
		t.Fatal("21:00 is outside the service window")
	}
	// A previously chosen morning slot must drop out after switching to today.
	today := GenerateSlots(day(2026, time.March, 10, 0, 0), day(2026, time.March, 10, 13, 5))
	if Contains(today, "09:00") {
		t.Fatal("09:00 already elapsed, should not be offered")
	}
}
