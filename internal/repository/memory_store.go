package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intercity-tours/booking/internal/domain"
)

// MemoryStore is an in-memory Store for tests. Update runs against a
// deep copy of the state and swaps it in only on success, so a failed
// unit of work observably rolls back, matching the transactional
// contract of the Postgres store.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	routes    map[string]*domain.Route
	tours     map[string]*domain.Tour
	fares     map[string]map[domain.StopPair]decimal.Decimal
	seats     map[string]map[int]*domain.Seat
	tickets   map[string]*domain.Ticket
	purchases map[string]*domain.Purchase
	ledger    []*domain.LedgerEntry
	avail     map[string]map[domain.StopPair]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		routes:    make(map[string]*domain.Route),
		tours:     make(map[string]*domain.Tour),
		fares:     make(map[string]map[domain.StopPair]decimal.Decimal),
		seats:     make(map[string]map[int]*domain.Seat),
		tickets:   make(map[string]*domain.Ticket),
		purchases: make(map[string]*domain.Purchase),
		avail:     make(map[string]map[domain.StopPair]int),
	}}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		routes:    make(map[string]*domain.Route, len(s.routes)),
		tours:     make(map[string]*domain.Tour, len(s.tours)),
		fares:     make(map[string]map[domain.StopPair]decimal.Decimal, len(s.fares)),
		seats:     make(map[string]map[int]*domain.Seat, len(s.seats)),
		tickets:   make(map[string]*domain.Ticket, len(s.tickets)),
		purchases: make(map[string]*domain.Purchase, len(s.purchases)),
		ledger:    make([]*domain.LedgerEntry, len(s.ledger)),
		avail:     make(map[string]map[domain.StopPair]int, len(s.avail)),
	}
	for id, r := range s.routes {
		cp := *r
		cp.Stops = append([]domain.Stop(nil), r.Stops...)
		c.routes[id] = &cp
	}
	for id, t := range s.tours {
		cp := *t
		c.tours[id] = &cp
	}
	for pl, fares := range s.fares {
		m := make(map[domain.StopPair]decimal.Decimal, len(fares))
		for k, v := range fares {
			m[k] = v
		}
		c.fares[pl] = m
	}
	for tourID, seats := range s.seats {
		m := make(map[int]*domain.Seat, len(seats))
		for n, seat := range seats {
			cp := *seat
			m[n] = &cp
		}
		c.seats[tourID] = m
	}
	for id, t := range s.tickets {
		cp := *t
		c.tickets[id] = &cp
	}
	for id, p := range s.purchases {
		cp := *p
		c.purchases[id] = &cp
	}
	for i, e := range s.ledger {
		cp := *e
		c.ledger[i] = &cp
	}
	for tourID, rows := range s.avail {
		m := make(map[domain.StopPair]int, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		c.avail[tourID] = m
	}
	return c
}

// View runs fn against the current state.
func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryTx{state: s.state})
}

// Update runs fn against a copy of the state and commits it only when
// fn returns nil.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&memoryTx{state: next}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// SeedRoute registers a route for tests.
func (s *MemoryStore) SeedRoute(route *domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.routes[route.ID] = route
}

// SeedTour registers a tour and its seat rows for tests.
func (s *MemoryStore) SeedTour(tour *domain.Tour, seats []*domain.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tours[tour.ID] = tour
	m := make(map[int]*domain.Seat, len(seats))
	for _, seat := range seats {
		m[seat.Number] = seat
	}
	s.state.seats[tour.ID] = m
}

// SeedFare registers a fare for tests.
func (s *MemoryStore) SeedFare(pricelistID, depStopID, arrStopID string, fare decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.fares[pricelistID] == nil {
		s.state.fares[pricelistID] = make(map[domain.StopPair]decimal.Decimal)
	}
	s.state.fares[pricelistID][domain.StopPair{DepStopID: depStopID, ArrStopID: arrStopID}] = fare
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Routes() RouteRepository              { return &memoryRouteRepo{t.state} }
func (t *memoryTx) Tours() TourRepository                { return &memoryTourRepo{t.state} }
func (t *memoryTx) Prices() PriceRepository              { return &memoryPriceRepo{t.state} }
func (t *memoryTx) Seats() SeatRepository                { return &memorySeatRepo{t.state} }
func (t *memoryTx) Tickets() TicketRepository            { return &memoryTicketRepo{t.state} }
func (t *memoryTx) Purchases() PurchaseRepository        { return &memoryPurchaseRepo{t.state} }
func (t *memoryTx) Ledger() LedgerRepository             { return &memoryLedgerRepo{t.state} }
func (t *memoryTx) Availability() AvailabilityRepository { return &memoryAvailabilityRepo{t.state} }

type memoryRouteRepo struct{ s *memoryState }

func (r *memoryRouteRepo) Get(ctx context.Context, routeID string) (*domain.Route, error) {
	route, ok := r.s.routes[routeID]
	if !ok {
		return nil, domain.ErrRouteNotFound
	}
	cp := *route
	cp.Stops = append([]domain.Stop(nil), route.Stops...)
	return &cp, nil
}

type memoryTourRepo struct{ s *memoryState }

func (r *memoryTourRepo) Get(ctx context.Context, tourID string) (*domain.Tour, error) {
	tour, ok := r.s.tours[tourID]
	if !ok {
		return nil, domain.ErrTourNotFound
	}
	cp := *tour
	return &cp, nil
}

func (r *memoryTourRepo) Create(ctx context.Context, tour *domain.Tour) error {
	cp := *tour
	r.s.tours[tour.ID] = &cp
	return nil
}

func (r *memoryTourRepo) ListDeparted(ctx context.Context, now time.Time, limit int) ([]*domain.Tour, error) {
	var out []*domain.Tour
	for _, tour := range r.s.tours {
		if !tour.Closed && tour.DepartsAt.Before(now) {
			cp := *tour
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartsAt.Before(out[j].DepartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTourRepo) ListOpen(ctx context.Context, limit int) ([]*domain.Tour, error) {
	var out []*domain.Tour
	for _, tour := range r.s.tours {
		if !tour.Closed {
			cp := *tour
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartsAt.Before(out[j].DepartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTourRepo) MarkClosed(ctx context.Context, tourID string) error {
	tour, ok := r.s.tours[tourID]
	if !ok {
		return domain.ErrTourNotFound
	}
	tour.Closed = true
	return nil
}

type memoryPriceRepo struct{ s *memoryState }

func (r *memoryPriceRepo) Fare(ctx context.Context, pricelistID, depStopID, arrStopID string) (decimal.Decimal, error) {
	fares, ok := r.s.fares[pricelistID]
	if !ok {
		return decimal.Zero, domain.ErrPriceNotFound
	}
	fare, ok := fares[domain.StopPair{DepStopID: depStopID, ArrStopID: arrStopID}]
	if !ok {
		return decimal.Zero, domain.ErrPriceNotFound
	}
	return fare, nil
}

func (r *memoryPriceRepo) Pairs(ctx context.Context, pricelistID string) ([]domain.StopPair, error) {
	fares := r.s.fares[pricelistID]
	pairs := make([]domain.StopPair, 0, len(fares))
	for pair := range fares {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].DepStopID != pairs[j].DepStopID {
			return pairs[i].DepStopID < pairs[j].DepStopID
		}
		return pairs[i].ArrStopID < pairs[j].ArrStopID
	})
	return pairs, nil
}

type memorySeatRepo struct{ s *memoryState }

func (r *memorySeatRepo) Get(ctx context.Context, tourID string, number int) (*domain.Seat, error) {
	seat, ok := r.s.seats[tourID][number]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	cp := *seat
	return &cp, nil
}

func (r *memorySeatRepo) GetForUpdate(ctx context.Context, tourID string, number int) (*domain.Seat, error) {
	return r.Get(ctx, tourID, number)
}

func (r *memorySeatRepo) ListByTour(ctx context.Context, tourID string) ([]*domain.Seat, error) {
	seats := r.s.seats[tourID]
	out := make([]*domain.Seat, 0, len(seats))
	for _, seat := range seats {
		cp := *seat
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memorySeatRepo) Update(ctx context.Context, seat *domain.Seat) error {
	if _, ok := r.s.seats[seat.TourID][seat.Number]; !ok {
		return domain.ErrSeatNotFound
	}
	cp := *seat
	r.s.seats[seat.TourID][seat.Number] = &cp
	return nil
}

func (r *memorySeatRepo) BulkCreate(ctx context.Context, seats []*domain.Seat) error {
	for _, seat := range seats {
		if r.s.seats[seat.TourID] == nil {
			r.s.seats[seat.TourID] = make(map[int]*domain.Seat)
		}
		cp := *seat
		r.s.seats[seat.TourID][seat.Number] = &cp
	}
	return nil
}

func (r *memorySeatRepo) BlockAll(ctx context.Context, tourID string) error {
	for _, seat := range r.s.seats[tourID] {
		seat.Blocked = true
	}
	return nil
}

type memoryTicketRepo struct{ s *memoryState }

func (r *memoryTicketRepo) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, ok := r.s.tickets[ticketID]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memoryTicketRepo) GetForUpdate(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return r.Get(ctx, ticketID)
}

func (r *memoryTicketRepo) ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.PurchaseID == purchaseID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	cp := *ticket
	r.s.tickets[ticket.ID] = &cp
	return nil
}

func (r *memoryTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	cp := *ticket
	r.s.tickets[ticket.ID] = &cp
	return nil
}

func (r *memoryTicketRepo) Delete(ctx context.Context, ticketID string) error {
	if _, ok := r.s.tickets[ticketID]; !ok {
		return domain.ErrTicketNotFound
	}
	delete(r.s.tickets, ticketID)
	return nil
}

type memoryPurchaseRepo struct{ s *memoryState }

func (r *memoryPurchaseRepo) Get(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	p, ok := r.s.purchases[purchaseID]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPurchaseRepo) GetForUpdate(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	return r.Get(ctx, purchaseID)
}

func (r *memoryPurchaseRepo) Create(ctx context.Context, purchase *domain.Purchase) error {
	cp := *purchase
	r.s.purchases[purchase.ID] = &cp
	return nil
}

func (r *memoryPurchaseRepo) Update(ctx context.Context, purchase *domain.Purchase) error {
	if _, ok := r.s.purchases[purchase.ID]; !ok {
		return domain.ErrPurchaseNotFound
	}
	cp := *purchase
	r.s.purchases[purchase.ID] = &cp
	return nil
}

func (r *memoryPurchaseRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Purchase, error) {
	var out []*domain.Purchase
	for _, p := range r.s.purchases {
		if p.IsExpiredAt(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryLedgerRepo struct{ s *memoryState }

func (r *memoryLedgerRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	cp := *entry
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r *memoryLedgerRepo) ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, e := range r.s.ledger {
		if e.PurchaseID == purchaseID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memoryAvailabilityRepo struct{ s *memoryState }

func (r *memoryAvailabilityRepo) Get(ctx context.Context, tourID, depStopID, arrStopID string) (int, error) {
	rows, ok := r.s.avail[tourID]
	if !ok {
		return 0, domain.ErrPriceNotFound
	}
	count, ok := rows[domain.StopPair{DepStopID: depStopID, ArrStopID: arrStopID}]
	if !ok {
		return 0, domain.ErrPriceNotFound
	}
	return count, nil
}

func (r *memoryAvailabilityRepo) ListByTour(ctx context.Context, tourID string) ([]domain.AvailabilityRow, error) {
	rows := r.s.avail[tourID]
	out := make([]domain.AvailabilityRow, 0, len(rows))
	for pair, count := range rows {
		out = append(out, domain.AvailabilityRow{
			TourID:    tourID,
			DepStopID: pair.DepStopID,
			ArrStopID: pair.ArrStopID,
			FreeSeats: count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepStopID != out[j].DepStopID {
			return out[i].DepStopID < out[j].DepStopID
		}
		return out[i].ArrStopID < out[j].ArrStopID
	})
	return out, nil
}

func (r *memoryAvailabilityRepo) Upsert(ctx context.Context, rows []domain.AvailabilityRow) error {
	for _, row := range rows {
		if r.s.avail[row.TourID] == nil {
			r.s.avail[row.TourID] = make(map[domain.StopPair]int)
		}
		r.s.avail[row.TourID][domain.StopPair{DepStopID: row.DepStopID, ArrStopID: row.ArrStopID}] = row.FreeSeats
	}
	return nil
}

func (r *memoryAvailabilityRepo) Zero(ctx context.Context, tourID string) error {
	for pair := range r.s.avail[tourID] {
		r.s.avail[tourID][pair] = 0
	}
	return nil
}
