package appointment

// DefaultSlotCatalog is the catalog a fresh clinic starts from. Fundus shares one pool
// for the whole day.
func DefaultSlotCatalog() map[CaseType][]SlotDefinition {
	timed := func(capacity int, times ...string) []SlotDefinition {
		defs := make([]SlotDefinition, len(times))
		for i, t := range times {
			defs[i] = SlotDefinition{Time: t, Capacity: capacity}
		}
		return defs
	}

	return map[CaseType][]SlotDefinition{
		"DM":       timed(10, "08:00", "09:00", "10:00"),
		"HPT":      timed(12, "08:00", "09:00", "10:00"),
		"BA":       timed(8, "08:30", "10:00"),
		"Fundus":   timed(5, AnyTime),
		"DE":       timed(8, "14:00", "15:00"),
		"Dressing": timed(10, "09:00", "14:00"),
	}
}
