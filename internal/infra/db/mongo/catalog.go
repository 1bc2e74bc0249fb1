package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/catalog"
)

// CatalogRepository reads accommodation snapshots replicated into the booking database.
type CatalogRepository struct {
	accommodations *mongo.Collection
	rooms          *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{
		accommodations: db.Collection("catalog_accommodations"),
		rooms:          db.Collection("catalog_rooms"),
	}
}

func (r *CatalogRepository) Accommodation(ctx context.Context, id catalog.AccommodationID) (catalog.Accommodation, error) {
	var doc accommodationDocument
	if err := r.accommodations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return catalog.Accommodation{}, catalog.ErrAccommodationNotFound
		}
		return catalog.Accommodation{}, err
	}
	return doc.toAccommodation(), nil
}

func (r *CatalogRepository) Room(ctx context.Context, id catalog.RoomID) (catalog.Room, error) {
	var doc roomDocument
	if err := r.rooms.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return catalog.Room{}, catalog.ErrRoomNotFound
		}
		return catalog.Room{}, err
	}
	return doc.toRoom(), nil
}

func (r *CatalogRepository) PutAccommodation(ctx context.Context, acc catalog.Accommodation) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	doc := accommodationDocument{
		ID:               string(acc.ID),
		Name:             acc.Name,
		BasePrice:        newMoneyDocument(acc.BasePrice),
		StarRating:       acc.StarRating,
		Active:           acc.Active,
		CheckInTime:      acc.CheckInTime,
		FreeCancellation: int64(acc.FreeCancellation.Seconds()),
	}
	_, err := r.accommodations.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CatalogRepository) PutRoom(ctx context.Context, room catalog.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	doc := roomDocument{
		ID:              string(room.ID),
		AccommodationID: string(room.AccommodationID),
		Name:            room.Name,
		Capacity:        room.Capacity,
		PriceModifier:   room.PriceModifier.String(),
		Available:       room.Available,
	}
	_, err := r.rooms.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

var _ catalog.Catalog = (*CatalogRepository)(nil)
