// Package catalog validates and normalizes an asset's time-slot catalog.
package catalog

import (
	"fmt"

	"assetbook/internal/models"
)

// Validate checks a proposed slot catalog before it is saved to an asset.
// Each bound must be a well-formed HH:mm value, end must exceed start, and
// no two slots may intersect. The first violation found wins.
func Validate(slots []models.TimeSlot) error {
	for _, s := range slots {
		start, end, err := s.Minutes()
		if err != nil {
			return fmt.Errorf("slot %s: %w", s, err)
		}
		if end <= start {
			return fmt.Errorf("slot %s: end must be after start", s)
		}
	}

	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			if models.SlotsOverlap(slots[i], slots[j]) {
				return fmt.Errorf("slots %s and %s: %w", slots[i], slots[j], models.ErrOverlappingSlots)
			}
		}
	}
	return nil
}

// Normalize validates the catalog and returns a copy sorted ascending by
// start time. The ordering is an invariant consumed by conflict detection
// and calendar aggregation for deterministic iteration.
func Normalize(slots []models.TimeSlot) ([]models.TimeSlot, error) {
	if err := Validate(slots); err != nil {
		return nil, err
	}
	out := make([]models.TimeSlot, len(slots))
	copy(out, slots)
	models.SortSlots(out)
	return out, nil
}
