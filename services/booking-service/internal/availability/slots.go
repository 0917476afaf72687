package availability

import (
	"fmt"
	"time"
)

// The daily service window. Slots start on whole hours from OpenHour
// through CloseHour inclusive, so a full day has 13 bookable slots.
const (
	OpenHour  = 8
	CloseHour = 20
)

// Slot is a single bookable one-hour start time within the service window.
// Value is the machine-readable 24-hour form ("14:00"); Label is what
// customers see ("2:00 PM").
type Slot struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// GenerateSlots returns the ordered bookable start times for selected, given
// the current instant. A zero selected date means no date was chosen and
// yields no slots. When selected falls on the same calendar day as now, the
// first slot is the next whole hour strictly after now (a booking can never
// start inside the current, partially elapsed hour), floored at OpenHour.
// Any other day gets the full window.
//
// Both times are expected to be in the same location (timezone). The result
// depends only on the two arguments.
func GenerateSlots(selected, now time.Time) []Slot {
	if selected.IsZero() {
		return nil
	}

	first := OpenHour
	if sameDay(selected, now) {
		if next := now.Hour() + 1; next > first {
			first = next
		}
	}
	if first > CloseHour {
		return nil
	}

	slots := make([]Slot, 0, CloseHour-first+1)
	for h := first; h <= CloseHour; h++ {
		slots = append(slots, Slot{
			Value: fmt.Sprintf("%02d:00", h),
			Label: label(h),
		})
	}
	return slots
}

// Contains reports whether value (24-hour "HH:MM") is one of slots. Callers
// use it to re-validate a previously chosen time after the date changes.
func Contains(slots []Slot, value string) bool {
	for _, s := range slots {
		if s.Value == value {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func label(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:00 %s", h, suffix)
}
