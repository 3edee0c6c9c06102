package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// SweepReservationStore is the slice of reservation persistence the
// sweeper needs.  *repository.ReservationRepo satisfies it.
type SweepReservationStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]model.HallReservation, error)
	Delete(ctx context.Context, id uint64) error
	AnyActiveForHall(ctx context.Context, hallID uint64, now time.Time) (bool, error)
}

// Sweeper periodically removes reservations whose end date has passed
// and re-derives the status of the halls they occupied, using the same
// occupancy query the engine uses.  It never touches event status:
// approval is a decision, not an occupancy fact, and a finished event
// stays approved in its history.
type Sweeper struct {
	reservations SweepReservationStore
	halls        HallStore
	interval     time.Duration
	now          func() time.Time
}

// NewSweeper returns a sweeper that runs every interval.
func NewSweeper(reservations SweepReservationStore, halls HallStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		reservations: reservations,
		halls:        halls,
		interval:     interval,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then on every tick until the context
// is cancelled.  Intended to run in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one pass.  Each reservation and each hall is handled
// independently: a failure on one is logged and the pass moves on, so a
// single bad row cannot wedge the whole sweep.  Every step is
// idempotent and the next tick retries whatever this pass missed.
func (s *Sweeper) sweep(ctx context.Context) {
	now := s.now()
	expired, err := s.reservations.ListExpired(ctx, now)
	if err != nil {
		log.Printf("sweeper: list expired reservations: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	hallIDs := make(map[uint64]struct{})
	removed := 0
	for _, res := range expired {
		if err := s.reservations.Delete(ctx, res.ID); err != nil {
			log.Printf("sweeper: delete reservation %d: %v", res.ID, err)
			continue
		}
		removed++
		hallIDs[res.HallID] = struct{}{}
	}

	freed := 0
	for hallID := range hallIDs {
		active, err := s.reservations.AnyActiveForHall(ctx, hallID, now)
		if err != nil {
			log.Printf("sweeper: check hall %d occupancy: %v", hallID, err)
			continue
		}
		status := model.HallAvailable
		if active {
			status = model.HallReserved
		}
		if err := s.halls.SetStatus(ctx, hallID, status); err != nil {
			log.Printf("sweeper: set hall %d status: %v", hallID, err)
			continue
		}
		if !active {
			freed++
		}
	}
	log.Printf("sweeper: removed %d expired reservations, freed %d halls", removed, freed)
}
