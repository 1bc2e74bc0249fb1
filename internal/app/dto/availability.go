package dto

import (
	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/daterange"
)

type OccupiedRange struct {
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Reason    string `json:"reason"`
	Reference string `json:"reference,omitempty"`
}

type Availability struct {
	Unit      string          `json:"unit"`
	CheckIn   string          `json:"check_in"`
	CheckOut  string          `json:"check_out"`
	Available bool            `json:"available"`
	Occupied  []OccupiedRange `json:"occupied"`
}

func MapAvailability(unit string, dr daterange.DateRange, available bool, occupied []availability.Block) Availability {
	out := Availability{
		Unit:      unit,
		CheckIn:   daterange.FormatDay(dr.CheckIn),
		CheckOut:  daterange.FormatDay(dr.CheckOut),
		Available: available,
		Occupied:  make([]OccupiedRange, 0, len(occupied)),
	}
	for _, block := range occupied {
		out.Occupied = append(out.Occupied, OccupiedRange{
			CheckIn:   daterange.FormatDay(block.Range.CheckIn),
			CheckOut:  daterange.FormatDay(block.Range.CheckOut),
			Reason:    string(block.Reason),
			Reference: block.Reference,
		})
	}
	return out
}
