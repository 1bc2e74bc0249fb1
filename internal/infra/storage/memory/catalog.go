package memory

import (
	"context"
	"sync"

	"staybook/internal/domain/catalog"
)

// Catalog serves accommodations and rooms from memory, usually seeded from fixtures.
type Catalog struct {
	mu             sync.RWMutex
	accommodations map[catalog.AccommodationID]catalog.Accommodation
	rooms          map[catalog.RoomID]catalog.Room
}

func NewCatalog() *Catalog {
	return &Catalog{
		accommodations: make(map[catalog.AccommodationID]catalog.Accommodation),
		rooms:          make(map[catalog.RoomID]catalog.Room),
	}
}

func (c *Catalog) Accommodation(ctx context.Context, id catalog.AccommodationID) (catalog.Accommodation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.accommodations[id]
	if !ok {
		return catalog.Accommodation{}, catalog.ErrAccommodationNotFound
	}
	return acc, nil
}

func (c *Catalog) Room(ctx context.Context, id catalog.RoomID) (catalog.Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.rooms[id]
	if !ok {
		return catalog.Room{}, catalog.ErrRoomNotFound
	}
	return room, nil
}

func (c *Catalog) PutAccommodation(acc catalog.Accommodation) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accommodations[acc.ID] = acc
	return nil
}

func (c *Catalog) PutRoom(room catalog.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.accommodations[room.AccommodationID]; !ok {
		return catalog.ErrAccommodationNotFound
	}
	c.rooms[room.ID] = room
	return nil
}

var _ catalog.Catalog = (*Catalog)(nil)
