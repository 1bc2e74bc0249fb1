package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staybook/internal/domain/catalog"
)

// CatalogRepository reads accommodation snapshots replicated into the booking database.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Accommodation(ctx context.Context, id catalog.AccommodationID) (catalog.Accommodation, error) {
	var row accommodationRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Accommodation{}, catalog.ErrAccommodationNotFound
		}
		return catalog.Accommodation{}, err
	}
	return row.toAccommodation(), nil
}

func (r *CatalogRepository) Room(ctx context.Context, id catalog.RoomID) (catalog.Room, error) {
	var row roomRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Room{}, catalog.ErrRoomNotFound
		}
		return catalog.Room{}, err
	}
	return row.toRoom(), nil
}

func (r *CatalogRepository) PutAccommodation(ctx context.Context, acc catalog.Accommodation) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	row := accommodationRow{
		ID:               string(acc.ID),
		Name:             acc.Name,
		BaseAmount:       acc.BasePrice.Amount,
		Currency:         acc.BasePrice.Currency,
		StarRating:       acc.StarRating,
		Active:           acc.Active,
		CheckInTime:      acc.CheckInTime,
		FreeCancellation: int64(acc.FreeCancellation.Seconds()),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *CatalogRepository) PutRoom(ctx context.Context, room catalog.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	var parent int64
	if err := db.Model(&accommodationRow{}).Where("id = ?", string(room.AccommodationID)).Count(&parent).Error; err != nil {
		return err
	}
	if parent == 0 {
		return catalog.ErrAccommodationNotFound
	}
	row := roomRow{
		ID:              string(room.ID),
		AccommodationID: string(room.AccommodationID),
		Name:            room.Name,
		Capacity:        room.Capacity,
		PriceModifier:   room.PriceModifier.String(),
		Available:       room.Available,
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

var _ catalog.Catalog = (*CatalogRepository)(nil)
