package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
)

var ErrDuplicateID = errors.New("mongo: booking id already exists")

var activeStatuses = []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}

// BookingRepository stores bookings as single documents with embedded history. Writes
// bump a per-unit guard document so two transactions booking the same unit conflict.
type BookingRepository struct {
	col   *mongo.Collection
	units *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{
		col:   db.Collection("agg_booking"),
		units: db.Collection("booking_units"),
	}
}

// EnsureIndexes creates the lookup and uniqueness indexes.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "range.check_in", Value: 1}}},
		{Keys: bson.D{{Key: "unit_key", Value: 1}, {Key: "status", Value: 1}, {Key: "range.check_in", Value: 1}}},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByReference(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"reference": ref})
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID directory.UserID) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"user_id": string(userID)}, opts)
}

func (r *BookingRepository) Overlapping(ctx context.Context, unit domainbooking.UnitKey, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.find(ctx, overlapFilter(unit, dr, ""), options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}}))
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if b.IsActive() {
		if err := r.touchUnit(ctx, b.Unit()); err != nil {
			return err
		}
		n, err := r.col.CountDocuments(ctx, overlapFilter(b.Unit(), b.Range, string(b.ID)))
		if err != nil {
			return err
		}
		if n > 0 {
			return domainbooking.ErrConflict
		}
	}
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if dup, _ := r.col.CountDocuments(ctx, bson.M{"_id": doc.ID}); dup > 0 {
				return ErrDuplicateID
			}
			return domainbooking.ErrDuplicateReference
		}
		return err
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Update(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if n, _ := r.col.CountDocuments(ctx, bson.M{"_id": doc.ID}); n == 0 {
			return domainbooking.ErrNotFound
		}
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

// touchUnit writes the unit guard inside the caller's transaction; a concurrent
// transaction on the same unit fails with a write conflict.
func (r *BookingRepository) touchUnit(ctx context.Context, unit domainbooking.UnitKey) error {
	_, err := r.units.UpdateByID(ctx, string(unit),
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil && isWriteConflict(err) {
		return domainbooking.ErrConflict
	}
	return err
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}

func overlapFilter(unit domainbooking.UnitKey, dr daterange.DateRange, excludeID string) bson.M {
	filter := bson.M{
		"unit_key":        string(unit),
		"status":          bson.M{"$in": activeStatuses},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(112) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
