package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

func newTestSweeper(reservations SweepReservationStore, halls HallStore) *Sweeper {
	s := NewSweeper(reservations, halls, time.Hour)
	s.now = func() time.Time { return testNow }
	return s
}

func addReservation(r *fakeReservations, hallID, eventID uint64, start, end time.Time) uint64 {
	r.next++
	r.m[r.next] = &model.HallReservation{
		ID: r.next, HallID: hallID, EventID: eventID,
		StartDate: start, EndDate: end, Status: model.ReservationReserved,
	}
	return r.next
}

func TestSweepRemovesExpiredAndFreesHall(t *testing.T) {
	reservations := newFakeReservations()
	halls := &fakeHalls{m: map[uint64]*model.Hall{
		1: {ID: 1, Name: "Main Hall", Capacity: 100, Status: model.HallReserved},
	}}
	id := addReservation(reservations, 1, 10, testNow.Add(-3*time.Hour), testNow.Add(-time.Hour))

	newTestSweeper(reservations, halls).sweep(context.Background())

	assert.NotContains(t, reservations.m, id)
	assert.Equal(t, model.HallAvailable, halls.m[1].Status)
}

func TestSweepKeepsHallWithActiveReservation(t *testing.T) {
	reservations := newFakeReservations()
	halls := &fakeHalls{m: map[uint64]*model.Hall{
		1: {ID: 1, Name: "Main Hall", Capacity: 100, Status: model.HallReserved},
	}}
	expired := addReservation(reservations, 1, 10, testNow.Add(-3*time.Hour), testNow.Add(-time.Hour))
	active := addReservation(reservations, 1, 11, testNow.Add(time.Hour), testNow.Add(3*time.Hour))

	newTestSweeper(reservations, halls).sweep(context.Background())

	assert.NotContains(t, reservations.m, expired)
	assert.Contains(t, reservations.m, active)
	assert.Equal(t, model.HallReserved, halls.m[1].Status,
		"hall must stay reserved while another reservation is active")
}

func TestSweepIgnoresFutureReservations(t *testing.T) {
	reservations := newFakeReservations()
	halls := &fakeHalls{m: map[uint64]*model.Hall{
		1: {ID: 1, Name: "Main Hall", Capacity: 100, Status: model.HallReserved},
	}}
	id := addReservation(reservations, 1, 10, testNow.Add(time.Hour), testNow.Add(3*time.Hour))

	newTestSweeper(reservations, halls).sweep(context.Background())

	assert.Contains(t, reservations.m, id)
	assert.Equal(t, model.HallReserved, halls.m[1].Status)
}

// failingDeletes wraps the reservation fake and refuses to delete one
// reservation, simulating a bad row mid-sweep.
type failingDeletes struct {
	*fakeReservations
	failID uint64
}

func (f *failingDeletes) Delete(ctx context.Context, id uint64) error {
	if id == f.failID {
		return fmt.Errorf("row locked")
	}
	return f.fakeReservations.Delete(ctx, id)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	reservations := newFakeReservations()
	halls := &fakeHalls{m: map[uint64]*model.Hall{
		1: {ID: 1, Name: "Main Hall", Capacity: 100, Status: model.HallReserved},
		2: {ID: 2, Name: "Annex", Capacity: 50, Status: model.HallReserved},
	}}
	stuck := addReservation(reservations, 1, 10, testNow.Add(-3*time.Hour), testNow.Add(-time.Hour))
	ok := addReservation(reservations, 2, 11, testNow.Add(-3*time.Hour), testNow.Add(-time.Hour))

	newTestSweeper(&failingDeletes{fakeReservations: reservations, failID: stuck}, halls).sweep(context.Background())

	assert.Contains(t, reservations.m, stuck)
	assert.NotContains(t, reservations.m, ok)
	assert.Equal(t, model.HallAvailable, halls.m[2].Status)
	// The stuck reservation still counts as occupancy, so its hall keeps
	// its status until a later pass removes the row.
	assert.Equal(t, model.HallReserved, halls.m[1].Status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reservations := newFakeReservations()
	halls := &fakeHalls{m: map[uint64]*model.Hall{}}
	s := newTestSweeper(reservations, halls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	require.Empty(t, reservations.m)
}
