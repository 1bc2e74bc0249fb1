package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"staybook/internal/app/commands"
	"staybook/internal/app/engine"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reference"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/security"
	"staybook/internal/infra/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	tokens security.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	cat := memory.NewCatalog()
	require.NoError(t, cat.PutAccommodation(catalog.Accommodation{ID: "acc-1", Name: "Harbour Hotel", BasePrice: money.Must(15000, "EUR"), Active: true}))
	require.NoError(t, cat.PutRoom(catalog.Room{ID: "room-101", AccommodationID: "acc-1", Capacity: 4, PriceModifier: decimal.RequireFromString("1.2"), Available: true}))

	hasher := security.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("guest-pass")
	require.NoError(t, err)
	dir := memory.NewDirectory()
	require.NoError(t, dir.Put(directory.User{ID: "u-guest", Email: "guest@example.com", Active: true, PasswordHash: hash}))
	require.NoError(t, dir.Put(directory.User{ID: "u-admin", Email: "admin@example.com", Roles: []directory.Role{directory.RoleAdmin}, Active: true}))

	calc, err := pricing.NewCalculator(decimal.RequireFromString("0.12"))
	require.NoError(t, err)
	refs, err := reference.NewGenerator("BK", 8, 5)
	require.NoError(t, err)

	store := memory.NewBookingStore(nil)
	locker := memory.NewLocker()
	eng := &engine.Engine{
		Catalog:    cat,
		Directory:  dir,
		UoWFactory: memory.Factory{Store: store},
		Locker:     locker,
		Pricing:    calc,
		References: refs,
		Now:        func() time.Time { return now },
	}

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(cmdBus, queryBus, eng)
	validator := middleware.NewStructValidator()
	commandsWithMW := middleware.ChainCommands(cmdBus,
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil, locker),
	)
	queriesWithMW := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	tokens := security.TokenIssuer{Secret: []byte("test-secret"), TTL: time.Hour, Now: func() time.Time { return now }}
	router := NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Commands: commandsWithMW, Queries: queriesWithMW},
		Availability:   AvailabilityHandler{Queries: queriesWithMW},
		Auth:           AuthHandler{Directory: dir, Passwords: hasher, Tokens: tokens},
		AuthMiddleware: AuthMiddleware{Tokens: tokens}.Handle,
	})
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) tokenFor(t *testing.T, id directory.UserID) string {
	t.Helper()
	tok, err := s.tokens.Issue(directory.User{ID: id})
	require.NoError(t, err)
	return tok.Token
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBody(checkIn, checkOut string, guests int) map[string]any {
	return map[string]any{
		"accommodation_id": "acc-1",
		"room_id":          "room-101",
		"check_in":         checkIn,
		"check_out":        checkOut,
		"guests":           guests,
	}
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "Guest@Example.com", "password": "guest-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["access_token"].(string)
	require.NotEmpty(t, token)

	rec = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-guest", decode(t, rec)["id"])

	rec = s.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "guest@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "admin@example.com", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookingRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/bookings", "", createBody("2025-06-10", "2025-06-13", 2))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookingFlow(t *testing.T) {
	s := newTestServer(t)
	guest := s.tokenFor(t, "u-guest")

	rec := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-13", 2), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "CONFIRMED", created["status"])
	price := created["price"].(map[string]any)
	assert.Equal(t, "604.80", price["total"].(map[string]any)["value"])
	id := created["id"].(string)

	replayed := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-13", 2), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, id, decode(t, replayed)["id"])

	overlap := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-12", "2025-06-14", 2))
	assert.Equal(t, http.StatusConflict, overlap.Code)
	assert.Equal(t, "room unavailable", decode(t, overlap)["kind"])

	backToBack := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-13", "2025-06-15", 2))
	assert.Equal(t, http.StatusCreated, backToBack.Code)

	rec = s.do(http.MethodGet, "/api/v1/bookings/"+id, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ref := decode(t, rec)["reference"].(string)

	rec = s.do(http.MethodGet, "/api/v1/bookings/reference/"+ref, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = s.do(http.MethodGet, "/api/v1/bookings?partition=upcoming", guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = s.do(http.MethodGet, "/api/v1/bookings?partition=someday", guest, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingRejections(t *testing.T) {
	s := newTestServer(t)
	guest := s.tokenFor(t, "u-guest")

	rec := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-14", 5))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-10", 2))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("10/06/2025", "2025-06-12", 2))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := createBody("2025-06-10", "2025-06-12", 2)
	body["accommodation_id"] = "acc-missing"
	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingChecksCapacityBeforeDates(t *testing.T) {
	s := newTestServer(t)
	guest := s.tokenFor(t, "u-guest")

	rec := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-10", 5))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "capacity exceeded", decode(t, rec)["kind"])

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("", "", 5))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "capacity exceeded", decode(t, rec)["kind"])

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("", "", 2))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid date range", decode(t, rec)["kind"])

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-31", "2025-07-02", 2))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "invalid date range", body["kind"])
	assert.Contains(t, body["error"], "malformed day")
}

func TestLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	guest := s.tokenFor(t, "u-guest")
	admin := s.tokenFor(t, "u-admin")

	rec := s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-13", 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/bookings/"+id+"/complete", guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bookings/"+id+"/complete", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bookings/"+id+"/cancel", guest, map[string]string{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode(t, rec)
	assert.Equal(t, "CANCELLED", cancelled["status"])
	assert.Equal(t, true, cancelled["cancellation"].(map[string]any)["refundable"])

	rec = s.do(http.MethodPost, "/api/v1/bookings/"+id+"/cancel", guest, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bookings/unknown/cancel", guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteAndAvailabilityEndpoints(t *testing.T) {
	s := newTestServer(t)
	guest := s.tokenFor(t, "u-guest")

	rec := s.do(http.MethodGet, "/api/v1/accommodations/acc-1/quote?room_id=room-101&check_in=2025-06-10&check_out=2025-06-13&guests=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode(t, rec)
	assert.Equal(t, "180.00", quote["nightly"].(map[string]any)["value"])
	assert.Equal(t, "604.80", quote["total"].(map[string]any)["value"])

	rec = s.do(http.MethodPost, "/api/v1/bookings", guest, createBody("2025-06-10", "2025-06-13", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/accommodations/acc-1/availability?room_id=room-101&check_in=2025-06-12&check_out=2025-06-14", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["available"])
	occupied := body["occupied"].([]any)
	require.Len(t, occupied, 1)
	assert.Equal(t, "BOOKING", occupied[0].(map[string]any)["reason"])
	assert.NotContains(t, occupied[0], "reference")

	admin := s.tokenFor(t, "u-admin")
	rec = s.do(http.MethodGet, "/api/v1/accommodations/acc-1/availability?room_id=room-101&check_in=2025-06-12&check_out=2025-06-14", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	occupied = decode(t, rec)["occupied"].([]any)
	require.Len(t, occupied, 1)
	assert.Contains(t, occupied[0].(map[string]any)["reference"], "BK-")

	rec = s.do(http.MethodGet, "/api/v1/accommodations/acc-1/availability?room_id=room-101&check_in=2025-06-13&check_out=2025-06-14", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["available"])

	rec = s.do(http.MethodGet, "/api/v1/accommodations/acc-1/quote?check_in=2025-06-13&check_out=2025-06-10", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, http.StatusConflict, statusFor(engine.ErrAccommodationClosed))
	assert.Equal(t, http.StatusForbidden, statusFor(engine.ErrUserInactive))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(reference.ErrExhausted))
	assert.Equal(t, http.StatusBadRequest, statusFor(engine.ErrCheckInPast))
}
