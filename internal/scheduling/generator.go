package scheduling

import (
	"clinic-booking/internal/data/entity"
)

// Candidate is one generated, not yet persisted, slot.
type Candidate struct {
	Start           TimeOfDay
	End             TimeOfDay
	DurationMinutes int
	VisitType       entity.VisitType
	Price           float64
}

// Break is a window inside the day in which no slot may start.
type Break struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (b *Break) covers(t TimeOfDay) bool {
	return b != nil && t >= b.Start && t < b.End
}

// Price picks the fee for a visit type, falling back to the consultation fee
// when the type-specific fee is unset.
func Price(visitType entity.VisitType, fees entity.Fees) float64 {
	switch visitType {
	case entity.VisitOnline:
		if fees.Online != nil {
			return *fees.Online
		}
	case entity.VisitHome:
		if fees.HomeVisit != nil {
			return *fees.HomeVisit
		}
	}
	return fees.Consultation
}

// Generate walks the window in steps of the slot duration. A trailing slot
// that would end after closing is dropped, never shortened.
func Generate(hours Hours, visitType entity.VisitType, fees entity.Fees, brk *Break) []Candidate {
	if hours.Closed || hours.SlotMinutes <= 0 {
		return nil
	}
	if visitType == "" {
		visitType = entity.VisitClinic
	}
	price := Price(visitType, fees)

	var out []Candidate
	for cursor := hours.Open; cursor.Add(hours.SlotMinutes) <= hours.Close; cursor = cursor.Add(hours.SlotMinutes) {
		if brk.covers(cursor) {
			continue
		}
		out = append(out, Candidate{
			Start:           cursor,
			End:             cursor.Add(hours.SlotMinutes),
			DurationMinutes: hours.SlotMinutes,
			VisitType:       visitType,
			Price:           price,
		})
	}
	return out
}
