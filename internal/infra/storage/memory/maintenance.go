package memory

import (
	"context"
	"sync"

	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

// MaintenanceSchedule keeps maintenance windows per bookable unit. It is filled from
// catalog fixtures; bookings never write to it.
type MaintenanceSchedule struct {
	mu     sync.RWMutex
	blocks map[domainbooking.UnitKey][]availability.Block
}

func NewMaintenanceSchedule() *MaintenanceSchedule {
	return &MaintenanceSchedule{blocks: make(map[domainbooking.UnitKey][]availability.Block)}
}

func (s *MaintenanceSchedule) Add(unit domainbooking.UnitKey, dr daterange.DateRange) error {
	if err := dr.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[unit] = append(s.blocks[unit], availability.Block{Range: dr, Reason: availability.ReasonMaintenance})
	return nil
}

func (s *MaintenanceSchedule) Blocks(ctx context.Context, unit domainbooking.UnitKey, dr daterange.DateRange) ([]availability.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return availability.Checker{Blocks: s.blocks[unit]}.BlockConflicts(dr), nil
}

var _ availability.BlockSource = (*MaintenanceSchedule)(nil)
