package appointment

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var clockTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// OfferedSlots is what the catalog offers a case type on one weekday.
type OfferedSlots struct {
	Slots []SlotDefinition
	// Configured is false when the case type has no definitions on any day.
	Configured  bool
	OfferedDays []time.Weekday
}

type SlotCatalog struct {
	store SlotStore
}

func NewSlotCatalog(store SlotStore) *SlotCatalog {
	return &SlotCatalog{store: store}
}

func (c *SlotCatalog) SlotsFor(ctx context.Context, caseType CaseType, weekday time.Weekday) (OfferedSlots, error) {
	defs, err := c.store.ListSlotDefinitions(ctx, caseType)
	if err != nil {
		return OfferedSlots{}, fmt.Errorf("load slot catalog: %w", err)
	}
	if len(defs) == 0 {
		return OfferedSlots{}, nil
	}

	out := OfferedSlots{Configured: true, OfferedDays: offeredDays(defs)}
	for _, d := range defs {
		if d.ActiveOn(weekday) {
			out.Slots = append(out.Slots, d)
		}
	}
	SortSlots(out.Slots)
	return out, nil
}

func (c *SlotCatalog) CaseTypes(ctx context.Context) ([]CaseType, error) {
	types, err := c.store.ListCaseTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list case types: %w", err)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types, nil
}

// SortSlots orders by clock time ascending with the "any" slot last.
func SortSlots(defs []SlotDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := defs[i], defs[j]
		if a.IsAnyTime() != b.IsAnyTime() {
			return b.IsAnyTime()
		}
		return a.Time < b.Time
	})
}

func offeredDays(defs []SlotDefinition) []time.Weekday {
	var seen [7]bool
	for _, d := range defs {
		if len(d.ActiveDays) == 0 {
			for i := range seen {
				seen[i] = true
			}
			break
		}
		for _, wd := range d.ActiveDays {
			seen[wd] = true
		}
	}
	var days []time.Weekday
	for i, ok := range seen {
		if ok {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}

// ValidateSlotDefinitions checks one case type's catalog before it is stored.
func ValidateSlotDefinitions(caseType CaseType, defs []SlotDefinition) error {
	if strings.TrimSpace(string(caseType)) == "" {
		return fmt.Errorf("%w: case type is required", ErrInvalidSlotDefinition)
	}
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.CaseType != "" && d.CaseType != caseType {
			return fmt.Errorf("%w: definition %d belongs to %q, not %q", ErrInvalidSlotDefinition, i, d.CaseType, caseType)
		}
		if d.Time != AnyTime && !clockTimePattern.MatchString(d.Time) {
			return fmt.Errorf("%w: time %q must be HH:MM or %q", ErrInvalidSlotDefinition, d.Time, AnyTime)
		}
		if d.Capacity < 1 {
			return fmt.Errorf("%w: capacity of %s must be at least 1", ErrInvalidSlotDefinition, d.Time)
		}
		for _, wd := range d.ActiveDays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSlotDefinition, wd)
			}
		}
		if seen[d.Time] {
			return fmt.Errorf("%w: duplicate time %s", ErrInvalidSlotDefinition, d.Time)
		}
		seen[d.Time] = true
	}
	return nil
}
