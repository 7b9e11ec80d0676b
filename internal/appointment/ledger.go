package appointment

// Occupancy is the seat usage of one (date, case type).
type Occupancy struct {
	BySlot map[string]int
	Total  int
}

func NewOccupancy(bySlot map[string]int) Occupancy {
	occ := Occupancy{BySlot: bySlot}
	if occ.BySlot == nil {
		occ.BySlot = map[string]int{}
	}
	for _, n := range occ.BySlot {
		occ.Total += n
	}
	return occ
}

// Booked returns the seats taken from def. The "any" slot is one shared pool, so every
// appointment of the day counts against it whatever time it recorded.
func (o Occupancy) Booked(def SlotDefinition) int {
	if def.IsAnyTime() {
		return o.Total
	}
	return o.BySlot[def.Time]
}
