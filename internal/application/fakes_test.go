package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	couponDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/idempotency"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/kafka"
)

// --- bookings ---

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	payments *fakePaymentRepo
	coupons  *fakeCouponRepo
	// failConfirm makes ConfirmWithPayment fail once.
	failConfirm error
	// beforeCancel runs once ahead of SaveCancellation, standing in for a
	// concurrent writer.
	beforeCancel func()
	// beforeDelete runs once ahead of DeletePending.
	beforeDelete func()
}

func newFakeBookingRepo(payments *fakePaymentRepo, coupons *fakeCouponRepo) *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[uuid.UUID]*booking.Booking{}, payments: payments, coupons: coupons}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return b.Clone(), nil
}

func (r *fakeBookingRepo) List(_ context.Context, f booking.ListFilter) ([]*booking.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if f.ClientID != nil && b.ClientID() != *f.ClientID {
			continue
		}
		if f.Status != nil && b.Status() != *f.Status {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) conflicts(petIDs []uuid.UUID, start, end time.Time, statuses []booking.Status, exclude uuid.UUID) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.ID() == exclude || !b.SharesPetWith(petIDs) {
			continue
		}
		blocking := false
		for _, s := range statuses {
			if b.Status() == s {
				blocking = true
			}
		}
		if blocking && booking.Overlaps(start, end, b.StartDate(), b.EndDate()) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (r *fakeBookingRepo) FindConflicts(_ context.Context, petIDs []uuid.UUID, start, end time.Time, statuses []booking.Status, exclude uuid.UUID) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts(petIDs, start, end, statuses, exclude), nil
}

func (r *fakeBookingRepo) CreateWithNoOverlap(_ context.Context, b *booking.Booking, usage *couponDomain.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conflicts(b.PetIDs(), b.StartDate(), b.EndDate(), booking.BlockingStatuses, b.ID())) > 0 {
		return domain.NewConflictError("pet already booked")
	}
	if usage != nil {
		if err := r.coupons.use(*usage); err != nil {
			return err
		}
	}
	r.bookings[b.ID()] = b.Clone()
	return nil
}

func (r *fakeBookingRepo) update(b *booking.Booking) error {
	cur, ok := r.bookings[b.ID()]
	if !ok || cur.Version() != b.Version()-1 {
		return domain.NewConflictError("booking was modified concurrently")
	}
	r.bookings[b.ID()] = b.Clone()
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(b)
}

func (r *fakeBookingRepo) ConfirmWithPayment(_ context.Context, b *booking.Booking, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failConfirm; err != nil {
		r.failConfirm = nil
		return err
	}
	if len(r.conflicts(b.PetIDs(), b.StartDate(), b.EndDate(), booking.BlockingStatuses, b.ID())) > 0 {
		return domain.NewConflictError("pet already booked")
	}
	if p != nil {
		if err := r.payments.Update(context.Background(), p); err != nil {
			return err
		}
	}
	return r.update(b)
}

func (r *fakeBookingRepo) SaveCancellation(_ context.Context, b *booking.Booking, p *payment.Payment) error {
	if hook := r.beforeCancel; hook != nil {
		r.beforeCancel = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p != nil {
		if err := r.payments.Update(context.Background(), p); err != nil {
			return err
		}
	}
	return r.update(b)
}

func (r *fakeBookingRepo) FindStalePending(_ context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.Status() != booking.StatusPending || b.Settlement() != booking.SettlementCard || !b.CreatedAt().Before(cutoff) {
			continue
		}
		if _, err := r.payments.FindByBookingID(context.Background(), b.ID()); err == nil {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *fakeBookingRepo) FindStuckProcessing(_ context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.Status() != booking.StatusPending {
			continue
		}
		p, err := r.payments.FindByBookingID(context.Background(), b.ID())
		if err != nil || p.Status() != payment.StatusProcessing || !p.UpdatedAt().Before(cutoff) {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *fakeBookingRepo) DeletePending(_ context.Context, id uuid.UUID, cond booking.DeleteCondition) (bool, error) {
	if hook := r.beforeDelete; hook != nil {
		r.beforeDelete = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status() != booking.StatusPending {
		return false, nil
	}
	p, err := r.payments.FindByBookingID(context.Background(), id)
	var status payment.Status
	var updatedAt time.Time
	if err == nil {
		status, updatedAt = p.Status(), p.UpdatedAt()
	}
	if !cond.Allows(err == nil, status, updatedAt) {
		return false, nil
	}
	delete(r.bookings, id)
	r.payments.deleteByBooking(id)
	return true, nil
}

// --- payments ---

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uuid.UUID]*payment.Payment{}}
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.NewNotFoundError("Payment", id.String())
	}
	return p.Clone(), nil
}

func (r *fakePaymentRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.BookingID() == bookingID {
			return p.Clone(), nil
		}
	}
	return nil, domain.NewNotFoundError("Payment", bookingID.String())
}

func (r *fakePaymentRepo) FindByGatewayRef(_ context.Context, ref string) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.GatewayRef() == ref {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListAll(_ context.Context, _, _ int) ([]*payment.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*payment.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, p.Clone())
	}
	return out, int64(len(out)), nil
}

func (r *fakePaymentRepo) ListReconciliationPending(_ context.Context) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.ReconciliationPending() {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) GetRevenueStats(_ context.Context) (int64, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var captured int64
	counts := map[string]int64{}
	for _, p := range r.payments {
		counts[string(p.Status())]++
		if p.Status() == payment.StatusSucceeded {
			captured += p.AmountCents()
		}
	}
	return captured, counts, nil
}

func (r *fakePaymentRepo) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.BookingID() == p.BookingID() {
			return domain.NewConflictError("payment already exists for booking")
		}
	}
	r.payments[p.ID()] = p.Clone()
	return nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.payments[p.ID()]
	if !ok || cur.Version() != p.Version()-1 {
		return domain.NewConflictError("payment was modified concurrently")
	}
	r.payments[p.ID()] = p.Clone()
	return nil
}

func (r *fakePaymentRepo) put(p *payment.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID()] = p.Clone()
}

func (r *fakePaymentRepo) deleteByBooking(bookingID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.payments {
		if p.BookingID() == bookingID {
			delete(r.payments, id)
		}
	}
}

// --- additional charges ---

type fakeChargeRepo struct {
	mu      sync.Mutex
	charges map[uuid.UUID]*payment.AdditionalCharge
}

func newFakeChargeRepo() *fakeChargeRepo {
	return &fakeChargeRepo{charges: map[uuid.UUID]*payment.AdditionalCharge{}}
}

func (r *fakeChargeRepo) Save(_ context.Context, c *payment.AdditionalCharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.charges[c.ID()] = &cp
	return nil
}

func (r *fakeChargeRepo) Update(_ context.Context, c *payment.AdditionalCharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.charges[c.ID()]
	if !ok || cur.Version() != c.Version()-1 {
		return domain.NewConflictError("charge was modified concurrently")
	}
	cp := *c
	r.charges[c.ID()] = &cp
	return nil
}

func (r *fakeChargeRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.AdditionalCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[id]
	if !ok {
		return nil, domain.NewNotFoundError("AdditionalCharge", id.String())
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChargeRepo) FindByGatewayRef(_ context.Context, ref string) (*payment.AdditionalCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.charges {
		if c.GatewayRef() == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("AdditionalCharge", ref)
}

func (r *fakeChargeRepo) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]*payment.AdditionalCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.AdditionalCharge
	for _, c := range r.charges {
		if c.BookingID() == bookingID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- clients ---

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*client.Client
	pets    map[uuid.UUID]client.Pet
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: map[uuid.UUID]*client.Client{}, pets: map[uuid.UUID]client.Pet{}}
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uuid.UUID) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.NewNotFoundError("Client", id.String())
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) Save(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.clients[c.ID()] = &cp
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.clients[c.ID()]
	if !ok || cur.Version() != c.Version()-1 {
		return domain.NewConflictError("client was modified concurrently")
	}
	cp := *c
	r.clients[c.ID()] = &cp
	return nil
}

func (r *fakeClientRepo) FindPets(_ context.Context, ids []uuid.UUID) ([]client.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []client.Pet
	for _, id := range ids {
		if p, ok := r.pets[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) ListPets(_ context.Context, ownerID uuid.UUID) ([]client.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []client.Pet
	for _, p := range r.pets {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- calendar ---

type fakeAvailabilityRepo struct {
	mu      sync.Mutex
	records map[string]*calendar.Availability
}

func newFakeAvailabilityRepo() *fakeAvailabilityRepo {
	return &fakeAvailabilityRepo{records: map[string]*calendar.Availability{}}
}

func (r *fakeAvailabilityRepo) FindRange(_ context.Context, st catalog.ServiceType, from, to time.Time) ([]*calendar.Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, to = calendar.NormalizeDate(from), calendar.NormalizeDate(to)
	var out []*calendar.Availability
	for _, a := range r.records {
		if a.ServiceType() == st && !a.Date().Before(from) && !a.Date().After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAvailabilityRepo) FindByDate(_ context.Context, st catalog.ServiceType, date time.Time) (*calendar.Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.records {
		if a.ServiceType() == st && calendar.DateKey(a.Date()) == calendar.DateKey(date) {
			return a, nil
		}
	}
	return nil, domain.NewNotFoundError("Availability", calendar.DateKey(date))
}

func (r *fakeAvailabilityRepo) Upsert(_ context.Context, a *calendar.Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[a.Key()] = a
	return nil
}

// --- coupons ---

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[uuid.UUID]*couponDomain.Coupon
	usages  []*couponDomain.Usage
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{coupons: map[uuid.UUID]*couponDomain.Coupon{}}
}

func (r *fakeCouponRepo) Save(_ context.Context, c *couponDomain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.coupons {
		if existing.Code() == c.Code() {
			return domain.NewConflictError("coupon code already exists")
		}
	}
	r.coupons[c.ID()] = c
	return nil
}

func (r *fakeCouponRepo) Update(_ context.Context, c *couponDomain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[c.ID()] = c
	return nil
}

func (r *fakeCouponRepo) FindByCode(_ context.Context, code string) (*couponDomain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coupons {
		if c.Code() == couponDomain.NormalizeCode(code) {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("Coupon", code)
}

func (r *fakeCouponRepo) FindByID(_ context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, domain.NewNotFoundError("Coupon", id.String())
	}
	return c, nil
}

func (r *fakeCouponRepo) FindActive(_ context.Context) ([]*couponDomain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*couponDomain.Coupon
	for _, c := range r.coupons {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCouponRepo) ListUsages(_ context.Context, couponID uuid.UUID) ([]*couponDomain.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*couponDomain.Usage
	for _, u := range r.usages {
		if u.CouponID == couponID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeCouponRepo) use(u couponDomain.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[u.CouponID]
	if !ok {
		return domain.NewNotFoundError("Coupon", u.CouponID.String())
	}
	if err := c.IncrementUses(); err != nil {
		return err
	}
	r.usages = append(r.usages, &u)
	return nil
}

// --- credit ledger ---

type fakeLedger struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*credit.Batch
	txs     []*credit.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{batches: map[uuid.UUID]*credit.Batch{}}
}

func (l *fakeLedger) Grant(_ context.Context, b *credit.Batch, tx *credit.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *b
	l.batches[b.ID()] = &cp
	l.txs = append(l.txs, tx)
	return nil
}

func (l *fakeLedger) FindBatches(_ context.Context, clientID uuid.UUID, st *catalog.ServiceType) ([]*credit.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*credit.Batch
	for _, b := range l.batches {
		if b.ClientID() != clientID || (st != nil && b.ServiceType() != *st) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (l *fakeLedger) ApplyAllocations(_ context.Context, allocs []credit.Allocation, txs []*credit.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range allocs {
		b, ok := l.batches[a.BatchID]
		if !ok || b.Remaining() != a.Expected {
			return domain.NewConflictError("credit batch changed concurrently")
		}
	}
	for _, a := range allocs {
		if err := l.batches[a.BatchID].Debit(a.Amount); err != nil {
			return err
		}
	}
	l.txs = append(l.txs, txs...)
	return nil
}

func (l *fakeLedger) ListTransactions(_ context.Context, clientID uuid.UUID, _, _ int) ([]*credit.Transaction, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*credit.Transaction
	for i := len(l.txs) - 1; i >= 0; i-- {
		if l.txs[i].ClientID == clientID {
			out = append(out, l.txs[i])
		}
	}
	return out, int64(len(out)), nil
}

// --- events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, ce kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ce)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ce := range p.events {
		out[i] = ce.Type
	}
	return out
}

// --- harness ---

type harness struct {
	bookings  *fakeBookingRepo
	payments  *fakePaymentRepo
	charges   *fakeChargeRepo
	clients   *fakeClientRepo
	calendar  *fakeAvailabilityRepo
	coupons   *fakeCouponRepo
	ledger    *fakeLedger
	gateway   *adapter.MockGateway
	publisher *recordingPublisher
	metrics   *metrics.Metrics

	bookingSvc *BookingService
	paymentSvc *PaymentService
	creditSvc  *CreditService
	couponSvc  *CouponService
	clientSvc  *ClientService
}

func newHarness(t *testing.T, autoAuthorize bool) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		payments:  newFakePaymentRepo(),
		charges:   newFakeChargeRepo(),
		clients:   newFakeClientRepo(),
		calendar:  newFakeAvailabilityRepo(),
		coupons:   newFakeCouponRepo(),
		ledger:    newFakeLedger(),
		gateway:   adapter.NewMockGateway(logger, autoAuthorize),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(nil),
	}
	h.bookings = newFakeBookingRepo(h.payments, h.coupons)

	engine, err := pricing.NewEngine(pricing.DefaultRates())
	require.NoError(t, err)

	h.clientSvc = NewClientService(h.clients, h.gateway, logger)
	h.couponSvc = NewCouponService(h.coupons, h.clients, logger)
	h.creditSvc = NewCreditService(h.ledger, nil, credit.ExpiryPolicy{Enforce: true}, h.metrics, logger)
	h.bookingSvc = NewBookingService(BookingDeps{
		Bookings:  h.bookings,
		Payments:  h.payments,
		Charges:   h.charges,
		Clients:   h.clients,
		Calendar:  NewCalendarService(h.calendar, logger),
		Coupons:   h.couponSvc,
		Credits:   h.creditSvc,
		Pricer:    engine,
		Gateway:   h.gateway,
		Publisher: h.publisher,
		Metrics:   h.metrics,
	}, logger)
	h.paymentSvc = NewPaymentService(h.payments, h.charges, h.bookings, h.clients, h.clientSvc,
		h.gateway, idempotency.NewMemoryStore(time.Hour), h.publisher, h.metrics, logger)
	return h
}

// seedClient stores a client with one adult pet per name.
func (h *harness) seedClient(t *testing.T, email string, petNames ...string) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	c := client.NewClient(email, "Test Client")
	require.NoError(t, h.clients.Save(context.Background(), c))
	pets := make([]uuid.UUID, len(petNames))
	for i, name := range petNames {
		pets[i] = uuid.New()
		h.clients.pets[pets[i]] = client.Pet{ID: pets[i], OwnerID: c.ID(), Name: name, Species: "dog"}
	}
	return c.ID(), pets
}

func (h *harness) seedCoupon(t *testing.T, p couponDomain.Params) *couponDomain.Coupon {
	t.Helper()
	c, err := couponDomain.NewCoupon(p)
	require.NoError(t, err)
	require.NoError(t, h.coupons.Save(context.Background(), c))
	return c
}

func (h *harness) markUnavailable(t *testing.T, st catalog.ServiceType, day time.Time) {
	t.Helper()
	a, err := calendar.NewAvailability(day, st, false, 0, "closed")
	require.NoError(t, err)
	require.NoError(t, h.calendar.Upsert(context.Background(), a))
}

func boardingRequest(pets []uuid.UUID, start time.Time, nights int) CreateBookingRequest {
	end := start.Add(time.Duration(nights) * 24 * time.Hour)
	return CreateBookingRequest{QuoteRequest: QuoteRequest{
		ServiceType: string(catalog.Boarding),
		PetIDs:      pets,
		StartAt:     &start,
		EndAt:       &end,
	}}
}

// nextMonth returns a fixed 10:00 UTC instant far enough ahead to be bookable.
func nextMonth(day int) time.Time {
	n := time.Now().UTC().AddDate(0, 1, 0)
	return time.Date(n.Year(), n.Month(), day, 10, 0, 0, 0, time.UTC)
}
