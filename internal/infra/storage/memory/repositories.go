package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
)

var (
	ErrDuplicateID = errors.New("memory: booking id already exists")
	ErrReadOnly    = errors.New("memory: unit of work is read-only")
	ErrUnitClosed  = errors.New("memory: unit of work already finished")
)

// BookingStore holds committed bookings. Writers go through a Unit, which stages changes
// and applies them atomically on Commit.
type BookingStore struct {
	mu       sync.RWMutex
	bookings map[domainbooking.ID]*domainbooking.Booking
	byRef    map[string]domainbooking.ID
	outbox   *OutboxStore
}

func NewBookingStore(outbox *OutboxStore) *BookingStore {
	if outbox == nil {
		outbox = NewOutboxStore()
	}
	return &BookingStore{
		bookings: make(map[domainbooking.ID]*domainbooking.Booking),
		byRef:    make(map[string]domainbooking.ID),
		outbox:   outbox,
	}
}

func (s *BookingStore) Outbox() *OutboxStore {
	return s.outbox
}

func (s *BookingStore) byID(id domainbooking.ID) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (s *BookingStore) byReference(ref string) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[ref]
	if !ok {
		return nil, false
	}
	return s.bookings[id].Clone(), true
}

func (s *BookingStore) listByUser(userID directory.UserID) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (s *BookingStore) overlapping(unit domainbooking.UnitKey, dr daterange.DateRange) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.IsActive() && b.Unit() == unit && b.Range.Overlaps(dr) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// apply validates the whole change set against committed state before writing any of it.
func (s *BookingStore) apply(inserts, updates []*domainbooking.Booking, records []appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range inserts {
		if _, ok := s.bookings[b.ID]; ok {
			return ErrDuplicateID
		}
		if _, ok := s.byRef[b.Reference]; ok {
			return domainbooking.ErrDuplicateReference
		}
		if b.IsActive() && s.conflictsLocked(b) {
			return domainbooking.ErrConflict
		}
		for _, other := range inserts[:i] {
			if other.Reference == b.Reference {
				return domainbooking.ErrDuplicateReference
			}
			if other.IsActive() && b.IsActive() && other.Unit() == b.Unit() && other.Range.Overlaps(b.Range) {
				return domainbooking.ErrConflict
			}
		}
	}
	for _, b := range updates {
		stored, ok := s.bookings[b.ID]
		if !ok {
			return domainbooking.ErrNotFound
		}
		if stored.Version != b.Version {
			return domainbooking.ErrConcurrentUpdate
		}
	}

	for _, b := range inserts {
		b.Version = 1
		s.bookings[b.ID] = b.Clone()
		s.byRef[b.Reference] = b.ID
	}
	for _, b := range updates {
		b.Version++
		s.bookings[b.ID] = b.Clone()
	}
	s.outbox.append(records...)
	return nil
}

func (s *BookingStore) conflictsLocked(candidate *domainbooking.Booking) bool {
	for _, b := range s.bookings {
		if b.ID != candidate.ID && b.IsActive() && b.Unit() == candidate.Unit() && b.Range.Overlaps(candidate.Range) {
			return true
		}
	}
	return false
}

// Factory starts units of work over a BookingStore.
type Factory struct {
	Store *BookingStore
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{store: f.Store, readOnly: opts.ReadOnly, staged: make(map[domainbooking.ID]*domainbooking.Booking)}
	u.repo = &unitBookings{unit: u}
	u.box = &unitOutbox{unit: u}
	return u, nil
}

// Unit stages inserts, updates and outbox records until Commit.
type Unit struct {
	store    *BookingStore
	readOnly bool
	done     bool

	mu      sync.Mutex
	staged  map[domainbooking.ID]*domainbooking.Booking
	inserts []*domainbooking.Booking
	updates []*domainbooking.Booking
	records []appoutbox.EventRecord

	repo *unitBookings
	box  *unitOutbox
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.repo
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return u.box
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if len(u.inserts) == 0 && len(u.updates) == 0 && len(u.records) == 0 {
		return nil
	}
	return u.store.apply(u.inserts, u.updates, u.records)
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.inserts, u.updates, u.records = nil, nil, nil
	u.staged = map[domainbooking.ID]*domainbooking.Booking{}
	return nil
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type unitBookings struct {
	unit *Unit
}

func (r *unitBookings) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.unit.mu.Lock()
	if b, ok := r.unit.staged[id]; ok {
		r.unit.mu.Unlock()
		return b, nil
	}
	r.unit.mu.Unlock()
	if b, ok := r.unit.store.byID(id); ok {
		return b, nil
	}
	return nil, domainbooking.ErrNotFound
}

func (r *unitBookings) ByReference(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	r.unit.mu.Lock()
	for _, b := range r.unit.staged {
		if b.Reference == ref {
			r.unit.mu.Unlock()
			return b, nil
		}
	}
	r.unit.mu.Unlock()
	if b, ok := r.unit.store.byReference(ref); ok {
		return b, nil
	}
	return nil, domainbooking.ErrNotFound
}

func (r *unitBookings) ListByUser(ctx context.Context, userID directory.UserID) ([]*domainbooking.Booking, error) {
	committed := r.unit.store.listByUser(userID)
	r.unit.mu.Lock()
	defer r.unit.mu.Unlock()
	out := make([]*domainbooking.Booking, 0, len(committed))
	for _, b := range committed {
		if staged, ok := r.unit.staged[b.ID]; ok {
			b = staged
		}
		out = append(out, b)
	}
	for _, b := range r.unit.inserts {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortByCheckIn(out)
	return out, nil
}

func (r *unitBookings) Overlapping(ctx context.Context, unit domainbooking.UnitKey, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	committed := r.unit.store.overlapping(unit, dr)
	r.unit.mu.Lock()
	defer r.unit.mu.Unlock()
	out := make([]*domainbooking.Booking, 0, len(committed))
	for _, b := range committed {
		if staged, ok := r.unit.staged[b.ID]; ok {
			if !staged.IsActive() {
				continue
			}
			b = staged
		}
		out = append(out, b)
	}
	for _, b := range r.unit.inserts {
		if b.IsActive() && b.Unit() == unit && b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *unitBookings) Insert(ctx context.Context, b *domainbooking.Booking) error {
	r.unit.mu.Lock()
	defer r.unit.mu.Unlock()
	if err := r.unit.writable(); err != nil {
		return err
	}
	if _, ok := r.unit.staged[b.ID]; ok {
		return ErrDuplicateID
	}
	if _, ok := r.unit.store.byID(b.ID); ok {
		return ErrDuplicateID
	}
	r.unit.staged[b.ID] = b
	r.unit.inserts = append(r.unit.inserts, b)
	return nil
}

func (r *unitBookings) Update(ctx context.Context, b *domainbooking.Booking) error {
	r.unit.mu.Lock()
	defer r.unit.mu.Unlock()
	if err := r.unit.writable(); err != nil {
		return err
	}
	if slices.Contains(r.unit.inserts, b) {
		return nil
	}
	if _, ok := r.unit.staged[b.ID]; !ok {
		r.unit.updates = append(r.unit.updates, b)
	}
	r.unit.staged[b.ID] = b
	return nil
}

type unitOutbox struct {
	unit *Unit
}

func (o *unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.unit.mu.Lock()
	defer o.unit.mu.Unlock()
	if err := o.unit.writable(); err != nil {
		return err
	}
	o.unit.records = append(o.unit.records, record)
	return nil
}

func sortByCheckIn(out []*domainbooking.Booking) {
	slices.SortStableFunc(out, func(a, b *domainbooking.Booking) int {
		if c := a.Range.CheckIn.Compare(b.Range.CheckIn); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

var (
	_ uow.UoWFactory           = Factory{}
	_ domainbooking.Repository = (*unitBookings)(nil)
)
