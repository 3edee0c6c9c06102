package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/payment"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// ----- in-memory fakes -----

type fakeEvents struct {
	mu   sync.Mutex
	m    map[uint64]*model.Event
	regs map[uint64]map[uint64]bool
	next uint64
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{m: map[uint64]*model.Event{}, regs: map[uint64]map[uint64]bool{}}
}

func (f *fakeEvents) Create(_ context.Context, ev *model.Event) error {
	f.next++
	ev.ID = f.next
	ev.Status = model.EventPending
	cp := *ev
	f.m[ev.ID] = &cp
	f.regs[ev.ID] = map[uint64]bool{}
	return nil
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	ev, ok := f.m[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEvents) Update(_ context.Context, ev *model.Event) error {
	if _, ok := f.m[ev.ID]; !ok {
		return repository.ErrEventNotFound
	}
	cp := *ev
	f.m[ev.ID] = &cp
	return nil
}

func (f *fakeEvents) SetStatus(_ context.Context, id uint64, status string) error {
	if ev, ok := f.m[id]; ok {
		ev.Status = status
	}
	return nil
}

func (f *fakeEvents) SetStatusClearHall(_ context.Context, id uint64, status string) error {
	if ev, ok := f.m[id]; ok {
		ev.Status = status
		ev.HallID = nil
	}
	return nil
}

func (f *fakeEvents) Delete(_ context.Context, id uint64) error {
	if _, ok := f.m[id]; !ok {
		return repository.ErrEventNotFound
	}
	delete(f.m, id)
	delete(f.regs, id)
	return nil
}

func (f *fakeEvents) CountRegistrations(_ context.Context, eventID uint64) (int, error) {
	return len(f.regs[eventID]), nil
}

func (f *fakeEvents) IsRegistered(_ context.Context, eventID, userID uint64) (bool, error) {
	return f.regs[eventID][userID], nil
}

func (f *fakeEvents) AddRegistration(_ context.Context, eventID, userID uint64, capacity uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	regs := f.regs[eventID]
	if regs == nil {
		regs = map[uint64]bool{}
		f.regs[eventID] = regs
	}
	if regs[userID] {
		return repository.ErrAlreadyRegistered
	}
	if uint32(len(regs)) >= capacity {
		return repository.ErrCapacityFull
	}
	regs[userID] = true
	return nil
}

func (f *fakeEvents) RemoveRegistration(_ context.Context, eventID, userID uint64) error {
	delete(f.regs[eventID], userID)
	return nil
}

func (f *fakeEvents) HasApprovedOverlap(_ context.Context, hallID uint64, start, end time.Time) (bool, error) {
	for _, ev := range f.m {
		if ev.Status != model.EventApproved || ev.HallID == nil || *ev.HallID != hallID {
			continue
		}
		if ev.StartDate == nil || ev.EndDate == nil {
			continue
		}
		if ev.StartDate.Before(end) && start.Before(*ev.EndDate) {
			return true, nil
		}
	}
	return false, nil
}

type fakeHalls struct {
	m map[uint64]*model.Hall
}

func (f *fakeHalls) GetByID(_ context.Context, id uint64) (*model.Hall, error) {
	h, ok := f.m[id]
	if !ok {
		return nil, repository.ErrHallNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHalls) SetStatus(_ context.Context, id uint64, status string) error {
	if h, ok := f.m[id]; ok {
		h.Status = status
	}
	return nil
}

type fakeReservations struct {
	mu   sync.Mutex
	m    map[uint64]*model.HallReservation
	next uint64
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{m: map[uint64]*model.HallReservation{}}
}

func (f *fakeReservations) conflict(hallID uint64, start, end time.Time, excludeEventID uint64) bool {
	for _, r := range f.m {
		if r.HallID != hallID || r.Status != model.ReservationReserved || r.EventID == excludeEventID {
			continue
		}
		if r.StartDate.Before(end) && start.Before(r.EndDate) {
			return true
		}
	}
	return false
}

func (f *fakeReservations) FindConflict(_ context.Context, hallID uint64, start, end time.Time, excludeEventID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conflict(hallID, start, end, excludeEventID), nil
}

func (f *fakeReservations) Reserve(_ context.Context, res *model.HallReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict(res.HallID, res.StartDate, res.EndDate, res.EventID) {
		return repository.ErrOverlap
	}
	f.next++
	res.ID = f.next
	res.Status = model.ReservationReserved
	cp := *res
	f.m[res.ID] = &cp
	return nil
}

func (f *fakeReservations) GetByEvent(_ context.Context, eventID uint64) (*model.HallReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.m {
		if r.EventID == eventID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReservations) DeleteByEvent(ctx context.Context, eventID uint64) (*model.HallReservation, error) {
	res, err := f.GetByEvent(ctx, eventID)
	if err != nil || res == nil {
		return res, err
	}
	f.mu.Lock()
	delete(f.m, res.ID)
	f.mu.Unlock()
	return res, nil
}

func (f *fakeReservations) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	delete(f.m, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeReservations) AnyActiveForHall(_ context.Context, hallID uint64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.m {
		if r.HallID == hallID && r.Status == model.ReservationReserved && r.EndDate.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservations) ListExpired(_ context.Context, now time.Time) ([]model.HallReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.HallReservation
	for _, r := range f.m {
		if !r.EndDate.After(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakePayments struct {
	m    map[uint64]*model.Payment
	next uint64
}

func newFakePayments() *fakePayments { return &fakePayments{m: map[uint64]*model.Payment{}} }

func (f *fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.next++
	p.ID = f.next
	p.Status = model.PaymentPending
	cp := *p
	f.m[p.ID] = &cp
	return nil
}

func (f *fakePayments) FindByUserEvent(_ context.Context, userID, eventID uint64, status string) (*model.Payment, error) {
	for _, p := range f.m {
		if p.UserID == userID && p.EventID == eventID && p.Status == status {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (f *fakePayments) FindPendingBySession(_ context.Context, userID, eventID uint64, sessionID string) (*model.Payment, error) {
	for _, p := range f.m {
		if p.UserID == userID && p.EventID == eventID && p.Status == model.PaymentPending &&
			p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (f *fakePayments) ListCompletedByEvent(_ context.Context, eventID uint64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range f.m {
		if p.EventID == eventID && p.Status == model.PaymentCompleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) MarkCompleted(_ context.Context, id uint64, paymentIntentID string) error {
	p, ok := f.m[id]
	if !ok || p.Status != model.PaymentPending {
		return repository.ErrPaymentNotFound
	}
	p.Status = model.PaymentCompleted
	p.PaymentIntentID = &paymentIntentID
	return nil
}

func (f *fakePayments) MarkRefunded(_ context.Context, id uint64) error {
	p, ok := f.m[id]
	if !ok || p.Status != model.PaymentCompleted {
		return repository.ErrPaymentNotFound
	}
	p.Status = model.PaymentRefunded
	return nil
}

type fakeProcessor struct {
	refundErr error
	refunded  []string
	sessions  int
	paid      map[string]payment.SessionStatus
}

func (f *fakeProcessor) CreateCheckout(_ context.Context, _ payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.sessions++
	id := fmt.Sprintf("sess_%d", f.sessions)
	return &payment.CheckoutSession{SessionID: id, URL: "https://pay.test/" + id}, nil
}

func (f *fakeProcessor) ResolveSession(_ context.Context, sessionID string) (*payment.SessionStatus, error) {
	if st, ok := f.paid[sessionID]; ok {
		cp := st
		return &cp, nil
	}
	return &payment.SessionStatus{}, nil
}

func (f *fakeProcessor) Refund(_ context.Context, paymentIntentID string, _ int64) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, paymentIntentID)
	return nil
}

type fakeMedia struct{ deleted []string }

func (f *fakeMedia) Delete(path string) { f.deleted = append(f.deleted, path) }

// ----- test harness -----

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	engine       *Engine
	events       *fakeEvents
	halls        *fakeHalls
	reservations *fakeReservations
	payments     *fakePayments
	proc         *fakeProcessor
	media        *fakeMedia
}

func newTestEnv() *testEnv {
	env := &testEnv{
		events:       newFakeEvents(),
		halls:        &fakeHalls{m: map[uint64]*model.Hall{}},
		reservations: newFakeReservations(),
		payments:     newFakePayments(),
		proc:         &fakeProcessor{paid: map[string]payment.SessionStatus{}},
		media:        &fakeMedia{},
	}
	env.engine = NewEngine(env.events, env.halls, env.reservations, env.payments, env.proc, env.media)
	env.engine.now = func() time.Time { return testNow }
	return env
}

func (e *testEnv) addHall(capacity uint32) uint64 {
	id := uint64(len(e.halls.m) + 1)
	e.halls.m[id] = &model.Hall{ID: id, Name: fmt.Sprintf("Hall %d", id), Capacity: capacity, Status: model.HallAvailable}
	return id
}

func (e *testEnv) addEvent(t *testing.T, hallID uint64, startOffset, endOffset time.Duration, capacity, priceCents uint32) *model.Event {
	t.Helper()
	start := testNow.Add(startOffset)
	end := testNow.Add(endOffset)
	ev := &model.Event{
		HostID:     7,
		Title:      "Launch Party",
		Location:   "Downtown",
		EventDate:  start.Truncate(24 * time.Hour),
		EventTime:  "19:00",
		StartDate:  &start,
		EndDate:    &end,
		Capacity:   capacity,
		PriceCents: priceCents,
	}
	if hallID != 0 {
		ev.HallID = &hallID
	}
	require.NoError(t, e.engine.Create(context.Background(), ev))
	return ev
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := KindOf(err)
	require.True(t, ok, "expected lifecycle error, got %v", err)
	assert.Equal(t, kind, got)
}

func (e *testEnv) hallStatus(id uint64) string { return e.halls.m[id].Status }

// ----- approval -----

func TestApproveReservesHall(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)

	approved, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventApproved, approved.Status)

	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, hallID, res.HallID)
	assert.Equal(t, model.HallReserved, env.hallStatus(hallID))
}

func TestApproveOverlapConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	first := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	second := env.addEvent(t, hallID, 2*time.Hour, 4*time.Hour, 50, 0)

	_, err := env.engine.Approve(ctx, first.ID)
	require.NoError(t, err)

	_, err = env.engine.Approve(ctx, second.ID)
	requireKind(t, err, KindConflict)

	// Loser stays pending and holds no reservation.
	cur, err := env.events.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventPending, cur.Status)
	res, err := env.reservations.GetByEvent(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestApproveBackToBackWindows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	first := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	second := env.addEvent(t, hallID, 3*time.Hour, 5*time.Hour, 50, 0)

	_, err := env.engine.Approve(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.engine.Approve(ctx, second.ID)
	require.NoError(t, err, "touching windows must not conflict")
}

func TestApproveAlreadyApproved(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)

	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)
	_, err = env.engine.Approve(ctx, ev.ID)
	requireKind(t, err, KindConflict)
}

func TestApproveCapacityExceedsHall(t *testing.T) {
	env := newTestEnv()
	hallID := env.addHall(40)
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)
	// Attach the oversized hall after creation to bypass Create's check.
	env.events.m[ev.ID].HallID = &hallID

	_, err := env.engine.Approve(context.Background(), ev.ID)
	requireKind(t, err, KindCapacityExceeded)
}

func TestApproveWithoutHallIsPureStatusFlip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)

	approved, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventApproved, approved.Status)

	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, res, "hall-less approval must create no reservation")
}

func TestApproveUnknownEvent(t *testing.T) {
	env := newTestEnv()
	_, err := env.engine.Approve(context.Background(), 999)
	requireKind(t, err, KindNotFound)
}

func TestConcurrentApprovalsOneWins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	first := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	second := env.addEvent(t, hallID, 2*time.Hour, 4*time.Hour, 50, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint64{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uint64) {
			defer wg.Done()
			_, errs[i] = env.engine.Approve(ctx, id)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			requireKind(t, err, KindConflict)
		}
	}
	assert.Equal(t, 1, failures, "exactly one of two overlapping approvals must fail")
}

// ----- rejection -----

func TestRejectReleasesHall(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)

	rejected, err := env.engine.Reject(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventRejected, rejected.Status)
	assert.Nil(t, rejected.HallID)

	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, model.HallAvailable, env.hallStatus(hallID))
}

func TestRejectTwice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Reject(ctx, ev.ID)
	require.NoError(t, err)
	_, err = env.engine.Reject(ctx, ev.ID)
	requireKind(t, err, KindConflict)
}

func TestRejectKeepsHallReservedForOthers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	first := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	second := env.addEvent(t, hallID, 4*time.Hour, 6*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.engine.Approve(ctx, second.ID)
	require.NoError(t, err)

	_, err = env.engine.Reject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HallReserved, env.hallStatus(hallID),
		"hall must stay reserved while another event holds an active reservation")
}

// ----- update -----

func TestUpdateSlotChangeDemotesToPending(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)

	upd := *ev
	newStart := testNow.Add(5 * time.Hour)
	newEnd := testNow.Add(7 * time.Hour)
	upd.StartDate = &newStart
	upd.EndDate = &newEnd

	out, err := env.engine.Update(ctx, ev.HostID, &upd)
	require.NoError(t, err)
	assert.Equal(t, model.EventPending, out.Status)

	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, res, "slot change must release the old reservation")
	assert.Equal(t, model.HallAvailable, env.hallStatus(hallID))
}

func TestUpdateWithoutSlotChangeKeepsApproval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)

	upd := *ev
	upd.Title = "Renamed"

	out, err := env.engine.Update(ctx, ev.HostID, &upd)
	require.NoError(t, err)
	assert.Equal(t, model.EventApproved, out.Status)

	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, res, "reservation must survive a cosmetic update")
}

func TestUpdateForbiddenForOtherHost(t *testing.T) {
	env := newTestEnv()
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)
	upd := *ev
	_, err := env.engine.Update(context.Background(), ev.HostID+1, &upd)
	requireKind(t, err, KindForbidden)
}

func TestUpdateCapacityBelowRegistrations(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)
	for user := uint64(1); user <= 3; user++ {
		_, err := env.engine.Register(ctx, user, ev.ID)
		require.NoError(t, err)
	}

	upd := *ev
	upd.Capacity = 2
	_, err = env.engine.Update(ctx, ev.HostID, &upd)
	requireKind(t, err, KindCapacityExceeded)
}

func TestUpdateSlotConflictLeavesEventIntact(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	first := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	second := env.addEvent(t, hallID, 4*time.Hour, 6*time.Hour, 50, 0)
	_, err := env.engine.Approve(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.engine.Approve(ctx, second.ID)
	require.NoError(t, err)

	// Move the second event onto the first one's window.
	upd := *second
	newStart := testNow.Add(2 * time.Hour)
	newEnd := testNow.Add(4 * time.Hour)
	upd.StartDate = &newStart
	upd.EndDate = &newEnd

	_, err = env.engine.Update(ctx, second.HostID, &upd)
	requireKind(t, err, KindConflict)

	cur, err := env.events.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventApproved, cur.Status, "failed update must not demote the event")
	res, err := env.reservations.GetByEvent(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, res, "failed update must not drop the reservation")
}

// ----- deletion -----

func TestDeleteRefundsPaymentsFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	img := "posters/launch.png"
	env.events.m[ev.ID].Image = &img
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)

	intent := "pi_123"
	env.payments.m[1] = &model.Payment{
		ID: 1, UserID: 5, EventID: ev.ID, AmountCents: 2500,
		Status: model.PaymentCompleted, PaymentIntentID: &intent,
	}
	env.payments.next = 1

	require.NoError(t, env.engine.Delete(ctx, ev.HostID, ev.ID))

	assert.Equal(t, []string{"pi_123"}, env.proc.refunded)
	assert.Equal(t, model.PaymentRefunded, env.payments.m[1].Status)
	assert.Equal(t, model.HallAvailable, env.hallStatus(hallID))
	assert.Equal(t, []string{"posters/launch.png"}, env.media.deleted)
	_, err = env.events.GetByID(ctx, ev.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestDeleteAbortsWhenRefundFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	_, err := env.engine.Approve(ctx, ev.ID)
	require.NoError(t, err)

	intent := "pi_fail"
	env.payments.m[1] = &model.Payment{
		ID: 1, UserID: 5, EventID: ev.ID, AmountCents: 2500,
		Status: model.PaymentCompleted, PaymentIntentID: &intent,
	}
	env.proc.refundErr = fmt.Errorf("gateway down")

	err = env.engine.Delete(ctx, ev.HostID, ev.ID)
	requireKind(t, err, KindRefundFailed)

	// Everything stays intact.
	cur, err := env.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventApproved, cur.Status)
	res, err := env.reservations.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, model.PaymentCompleted, env.payments.m[1].Status)
}

func TestDeleteForbiddenForOtherHost(t *testing.T) {
	env := newTestEnv()
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)
	err := env.engine.Delete(context.Background(), ev.HostID+1, ev.ID)
	requireKind(t, err, KindForbidden)
}

// ----- registration -----

func approveEvent(t *testing.T, env *testEnv, ev *model.Event) {
	t.Helper()
	_, err := env.engine.Approve(context.Background(), ev.ID)
	require.NoError(t, err)
}

func TestRegisterFreeEvent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, sess, "free events must not open a checkout")

	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)

	_, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	_, err = env.engine.Register(ctx, 5, ev.ID)
	requireKind(t, err, KindConflict)
}

func TestRegisterAtCapacity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 1, 0)
	approveEvent(t, env, ev)

	_, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	_, err = env.engine.Register(ctx, 6, ev.ID)
	requireKind(t, err, KindCapacityExceeded)
}

func TestRegisterPendingEvent(t *testing.T) {
	env := newTestEnv()
	ev := env.addEvent(t, 0, time.Hour, 3*time.Hour, 50, 0)
	_, err := env.engine.Register(context.Background(), 5, ev.ID)
	requireKind(t, err, KindConflict)
}

func TestRegisterAfterStart(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)

	env.engine.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err := env.engine.Register(ctx, 5, ev.ID)
	requireKind(t, err, KindConflict)
}

func TestRegisterPaidOpensCheckout(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.URL)

	// No registration yet, only a pending payment.
	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	p, err := env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentPending)
	require.NoError(t, err)
	assert.Equal(t, uint32(2500), p.AmountCents)
}

// ----- confirmation -----

func TestConfirmRegistersAfterPayment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_abc"}

	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))

	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentCompleted)
	require.NoError(t, err)
	require.NotNil(t, p.PaymentIntentID)
	assert.Equal(t, "pi_abc", *p.PaymentIntentID)
}

func TestConfirmUnpaidSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)

	err = env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID)
	requireKind(t, err, KindPaymentRequired)

	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_abc"}
	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))
	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))
}

func TestConfirmSecondCheckoutForSameEvent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	// The user abandons one checkout and opens another; paying the
	// second one must confirm regardless of the leftover pending row.
	first, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	second, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)
	env.proc.paid[second.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_second"}

	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, second.SessionID))

	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentCompleted)
	require.NoError(t, err)
	require.NotNil(t, p.PaymentIntentID)
	assert.Equal(t, "pi_second", *p.PaymentIntentID)
}

func TestConfirmWithoutPayment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	err := env.engine.ConfirmRegistration(ctx, 5, ev.ID, "sess_unknown")
	requireKind(t, err, KindPaymentRequired)
}

func TestConfirmAfterStart(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_late"}

	env.engine.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	err = env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID)
	requireKind(t, err, KindConflict)
}

func TestConfirmRefundsWhenEventFilled(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 1, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_late"}

	// The last spot goes to someone else while user 5 is paying.
	require.NoError(t, env.events.AddRegistration(ctx, ev.ID, 6, ev.Capacity))

	err = env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID)
	requireKind(t, err, KindCapacityExceeded)
	assert.Equal(t, []string{"pi_late"}, env.proc.refunded, "the settled charge must be refunded")
	_, err = env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentRefunded)
	require.NoError(t, err)
}

// ----- unregistration -----

func TestUnregisterFreeEvent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)
	_, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)

	require.NoError(t, env.engine.Unregister(ctx, 5, ev.ID))
	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnregisterRefundsPaidRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_abc"}
	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))

	require.NoError(t, env.engine.Unregister(ctx, 5, ev.ID))
	assert.Equal(t, []string{"pi_abc"}, env.proc.refunded)
	_, err = env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentRefunded)
	require.NoError(t, err)
	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnregisterRefundFailureKeepsRegistration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_abc"}
	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))

	env.proc.refundErr = fmt.Errorf("gateway down")
	err = env.engine.Unregister(ctx, 5, ev.ID)
	requireKind(t, err, KindRefundFailed)

	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok, "registration must survive a failed refund")
	_, err = env.payments.FindByUserEvent(ctx, 5, ev.ID, model.PaymentCompleted)
	require.NoError(t, err)
}

func TestUnregisterAfterRefundSkipsProcessor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	// The refund already settled but the registration link survived.
	intent := "pi_done"
	env.payments.m[1] = &model.Payment{
		ID: 1, UserID: 5, EventID: ev.ID, AmountCents: 2500,
		Status: model.PaymentRefunded, PaymentIntentID: &intent,
	}
	require.NoError(t, env.events.AddRegistration(ctx, ev.ID, 5, ev.Capacity))

	require.NoError(t, env.engine.Unregister(ctx, 5, ev.ID))
	assert.Empty(t, env.proc.refunded, "a settled refund must never reach the processor again")
	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

// flakyEvents fails RemoveRegistration a fixed number of times before
// delegating, standing in for a store that drops the unlink write.
type flakyEvents struct {
	*fakeEvents
	removeFailures int
}

func (f *flakyEvents) RemoveRegistration(ctx context.Context, eventID, userID uint64) error {
	if f.removeFailures > 0 {
		f.removeFailures--
		return fmt.Errorf("connection reset")
	}
	return f.fakeEvents.RemoveRegistration(ctx, eventID, userID)
}

func TestUnregisterRetryAfterFailedUnlink(t *testing.T) {
	env := newTestEnv()
	flaky := &flakyEvents{fakeEvents: env.events, removeFailures: 1}
	env.engine = NewEngine(flaky, env.halls, env.reservations, env.payments, env.proc, env.media)
	env.engine.now = func() time.Time { return testNow }
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 2500)
	approveEvent(t, env, ev)

	sess, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)
	env.proc.paid[sess.SessionID] = payment.SessionStatus{Paid: true, PaymentIntentID: "pi_abc"}
	require.NoError(t, env.engine.ConfirmRegistration(ctx, 5, ev.ID, sess.SessionID))

	// First attempt: the refund commits but the unlink write is lost.
	err = env.engine.Unregister(ctx, 5, ev.ID)
	require.Error(t, err)
	assert.Equal(t, []string{"pi_abc"}, env.proc.refunded)
	ok, err := env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	// The retry must finish the removal without a second refund.
	require.NoError(t, env.engine.Unregister(ctx, 5, ev.ID))
	assert.Equal(t, []string{"pi_abc"}, env.proc.refunded, "retry must not refund again")
	ok, err = env.events.IsRegistered(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnregisterNotRegistered(t *testing.T) {
	env := newTestEnv()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)
	err := env.engine.Unregister(context.Background(), 5, ev.ID)
	requireKind(t, err, KindNotFound)
}

func TestUnregisterAfterEnd(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	hallID := env.addHall(100)
	ev := env.addEvent(t, hallID, time.Hour, 3*time.Hour, 50, 0)
	approveEvent(t, env, ev)
	_, err := env.engine.Register(ctx, 5, ev.ID)
	require.NoError(t, err)

	env.engine.now = func() time.Time { return testNow.Add(4 * time.Hour) }
	err = env.engine.Unregister(ctx, 5, ev.ID)
	requireKind(t, err, KindConflict)
}
