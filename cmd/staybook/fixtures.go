package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type passwordHasher interface {
	Hash(password string) (string, error)
}

type catalogFixtures struct {
	Accommodations []accommodationFixture `json:"accommodations"`
	Users          []userFixture          `json:"users"`
}

type accommodationFixture struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	BasePrice             string        `json:"base_price"`
	Currency              string        `json:"currency"`
	StarRating            float64       `json:"star_rating"`
	Active                bool          `json:"active"`
	CheckInTime           string        `json:"check_in_time"`
	FreeCancellationHours int           `json:"free_cancellation_hours"`
	Rooms                 []roomFixture `json:"rooms"`
	// Maintenance blocks booking the whole accommodation as one unit.
	Maintenance []maintenanceFixture `json:"maintenance"`
}

type roomFixture struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Capacity      int                  `json:"capacity"`
	PriceModifier string               `json:"price_modifier"`
	Available     bool                 `json:"available"`
	Maintenance   []maintenanceFixture `json:"maintenance"`
}

type maintenanceFixture struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type userFixture struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Roles        []string `json:"roles"`
	Active       bool     `json:"active"`
	Password     string   `json:"password"`
	PasswordHash string   `json:"password_hash"`
}

// loadFixtures seeds the catalog and directory. Invalid entries are logged and skipped.
func loadFixtures(ctx context.Context, path, currency string, seed seeder, hasher passwordHasher, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("catalog fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("catalog fixtures file empty", "path", path)
		return nil
	}
	var fixtures catalogFixtures
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, fx := range fixtures.Accommodations {
		acc, err := fx.toAccommodation(currency)
		if err != nil {
			logger.Error("fixture invalid", "accommodation_id", fx.ID, "error", err)
			continue
		}
		if err := seed.accommodation(ctx, acc); err != nil {
			logger.Error("cannot store fixture accommodation", "accommodation_id", fx.ID, "error", err)
			continue
		}
		seedMaintenance(ctx, seed, booking.UnitFor(acc.ID, ""), fx.Maintenance, logger)
		for _, rfx := range fx.Rooms {
			room, err := rfx.toRoom(acc.ID)
			if err != nil {
				logger.Error("fixture invalid", "room_id", rfx.ID, "error", err)
				continue
			}
			if err := seed.room(ctx, room); err != nil {
				logger.Error("cannot store fixture room", "room_id", rfx.ID, "error", err)
				continue
			}
			seedMaintenance(ctx, seed, booking.UnitFor(acc.ID, room.ID), rfx.Maintenance, logger)
		}
		logger.Info("accommodation fixture imported", "accommodation_id", acc.ID, "rooms", len(fx.Rooms))
	}

	for _, ufx := range fixtures.Users {
		user, err := ufx.toUser(hasher)
		if err != nil {
			logger.Error("fixture invalid", "user_id", ufx.ID, "error", err)
			continue
		}
		if err := seed.user(ctx, user); err != nil {
			logger.Error("cannot store fixture user", "user_id", ufx.ID, "error", err)
			continue
		}
	}
	logger.Info("directory fixtures imported", "users", len(fixtures.Users))
	return nil
}

func seedMaintenance(ctx context.Context, seed seeder, unit booking.UnitKey, windows []maintenanceFixture, logger *slog.Logger) {
	if len(windows) == 0 {
		return
	}
	if seed.maintenance == nil {
		logger.Warn("maintenance fixtures ignored, no schedule configured", "unit", unit)
		return
	}
	for _, w := range windows {
		dr, err := daterange.Parse(w.CheckIn, w.CheckOut)
		if err == nil {
			err = seed.maintenance(ctx, unit, dr)
		}
		if err != nil {
			logger.Error("fixture invalid", "unit", unit, "maintenance", w.CheckIn+"/"+w.CheckOut, "error", err)
		}
	}
}

func (fx accommodationFixture) toAccommodation(fallbackCurrency string) (catalog.Accommodation, error) {
	currency := strings.ToUpper(strings.TrimSpace(fx.Currency))
	if currency == "" {
		currency = fallbackCurrency
	}
	base, err := money.Parse(fx.BasePrice, currency)
	if err != nil {
		return catalog.Accommodation{}, err
	}
	acc := catalog.Accommodation{
		ID:               catalog.AccommodationID(fx.ID),
		Name:             fx.Name,
		BasePrice:        base,
		StarRating:       fx.StarRating,
		Active:           fx.Active,
		CheckInTime:      fx.CheckInTime,
		FreeCancellation: time.Duration(fx.FreeCancellationHours) * time.Hour,
	}
	return acc, acc.Validate()
}

func (fx roomFixture) toRoom(accID catalog.AccommodationID) (catalog.Room, error) {
	modifier := decimal.NewFromInt(1)
	if raw := strings.TrimSpace(fx.PriceModifier); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return catalog.Room{}, fmt.Errorf("price_modifier: %w", err)
		}
		modifier = parsed
	}
	room := catalog.Room{
		ID:              catalog.RoomID(fx.ID),
		AccommodationID: accID,
		Name:            fx.Name,
		Capacity:        fx.Capacity,
		PriceModifier:   modifier,
		Available:       fx.Available,
	}
	return room, room.Validate()
}

func (fx userFixture) toUser(hasher passwordHasher) (directory.User, error) {
	roles := make([]directory.Role, 0, len(fx.Roles))
	for _, r := range fx.Roles {
		roles = append(roles, directory.Role(r))
	}
	hash := fx.PasswordHash
	if hash == "" && fx.Password != "" {
		var err error
		if hash, err = hasher.Hash(fx.Password); err != nil {
			return directory.User{}, err
		}
	}
	return directory.User{
		ID:           directory.UserID(fx.ID),
		Email:        fx.Email,
		Name:         fx.Name,
		Roles:        roles,
		Active:       fx.Active,
		PasswordHash: hash,
	}, nil
}
