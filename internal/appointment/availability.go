package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type SlotAvailability struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Available int    `json:"available"`
	Full      bool   `json:"full"`
}

type Availability struct {
	Date           Date               `json:"date"`
	CaseType       CaseType           `json:"case_type"`
	Weekday        time.Weekday       `json:"weekday"`
	Slots          []SlotAvailability `json:"slots"`
	TotalAvailable int                `json:"total_available"`
	TotalBooked    int                `json:"total_booked"`
}

// Slot returns the entry for timeSlot, if the resolved day offers it.
func (a *Availability) Slot(timeSlot string) (SlotAvailability, bool) {
	for _, s := range a.Slots {
		if s.Time == timeSlot {
			return s, true
		}
	}
	return SlotAvailability{}, false
}

// Resolver composes calendar, catalog and ledger into a day's bookable options.
type Resolver struct {
	calendar *CalendarPolicy
	catalog  *SlotCatalog
	ledger   Ledger
}

func NewResolver(calendar *CalendarPolicy, catalog *SlotCatalog, ledger Ledger) *Resolver {
	return &Resolver{calendar: calendar, catalog: catalog, ledger: ledger}
}

// Resolve never writes and always reads current state. Refusals come back as *PolicyError.
func (r *Resolver) Resolve(ctx context.Context, date Date, caseType CaseType) (*Availability, error) {
	decision, err := r.calendar.IsBookable(ctx, date)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &PolicyError{Kind: KindDateUnavailable, Reason: decision.Reason, Date: date, CaseType: caseType}
	}

	weekday := date.Weekday()
	offered, err := r.catalog.SlotsFor(ctx, caseType, weekday)
	if err != nil {
		return nil, err
	}
	if !offered.Configured {
		return nil, &PolicyError{
			Kind:     KindNotConfigured,
			Reason:   fmt.Sprintf("no slot catalog for %s", caseType),
			Date:     date,
			CaseType: caseType,
		}
	}
	if len(offered.Slots) == 0 {
		return nil, &PolicyError{
			Kind:     KindNotConfigured,
			Reason:   fmt.Sprintf("%s is not offered on %s (offered: %s)", caseType, weekday, joinWeekdays(offered.OfferedDays)),
			Date:     date,
			CaseType: caseType,
		}
	}

	counts, err := r.ledger.CountBooked(ctx, date, caseType)
	if err != nil {
		return nil, fmt.Errorf("count booked: %w", err)
	}
	occ := NewOccupancy(counts)

	out := &Availability{
		Date:     date,
		CaseType: caseType,
		Weekday:  weekday,
		Slots:    make([]SlotAvailability, 0, len(offered.Slots)),
	}

	hasAny := false
	for _, def := range offered.Slots {
		booked := occ.Booked(def)
		available := def.Capacity - booked
		if available < 0 {
			available = 0
		}
		out.Slots = append(out.Slots, SlotAvailability{
			Time:      def.Time,
			Capacity:  def.Capacity,
			Booked:    booked,
			Available: available,
			Full:      available == 0,
		})
		out.TotalAvailable += available
		if def.IsAnyTime() {
			hasAny = true
		} else {
			out.TotalBooked += booked
		}
	}
	if hasAny {
		out.TotalBooked = occ.Total
	}

	return out, nil
}

func joinWeekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}
