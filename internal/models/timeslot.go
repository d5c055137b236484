package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TimeSlot is a half-open interval [Start, End) within a single day.
// Both bounds are canonical "HH:mm" strings in 24-hour local time.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Key returns the composite occupancy key for the slot.
func (s TimeSlot) Key() string {
	return s.Start + "|" + s.End
}

func (s TimeSlot) String() string {
	return s.Start + "-" + s.End
}

// Minutes returns the start and end bounds as minutes since midnight.
func (s TimeSlot) Minutes() (start, end int, err error) {
	start, err = parseMinutes(s.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("slot start %q: %w", s.Start, err)
	}
	end, err = parseMinutes(s.End)
	if err != nil {
		return 0, 0, fmt.Errorf("slot end %q: %w", s.End, err)
	}
	return start, end, nil
}

// SlotsEqual reports whether two slots are the same catalog entry.
// Exact string equality is sufficient because catalogs store canonical
// "HH:mm" values.
func SlotsEqual(a, b TimeSlot) bool {
	return a.Start == b.Start && a.End == b.End
}

// SlotsOverlap reports whether two slots intersect using the half-open
// interval test startA < endB && startB < endA. Malformed slots never
// overlap anything; the catalog validator rejects them before this point.
func SlotsOverlap(a, b TimeSlot) bool {
	aStart, aEnd, err := a.Minutes()
	if err != nil {
		return false
	}
	bStart, bEnd, err := b.Minutes()
	if err != nil {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// SortSlots orders slots ascending by start minutes for stable display and
// deterministic catalog validation.
func SortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, _, errA := slots[i].Minutes()
		b, _, errB := slots[j].Minutes()
		if errA != nil || errB != nil {
			return slots[i].Start < slots[j].Start
		}
		return a < b
	})
}

// parseMinutes converts an "HH:mm" string to minutes since midnight.
// Hour must be in [0,23] and minute in [0,59]; "23:59" is the maximal bound
// of the day, there is no midnight wraparound.
func parseMinutes(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("expected HH:mm")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range")
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range")
	}
	return hour*60 + minute, nil
}
