package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mafia/backend/internal/database"
	"mafia/backend/internal/models"
)

// minDelay is the floor applied when a persisted deadline is already in
// the past at arm time (boot after downtime, sweep catching a miss).
const minDelay = time.Second

// TimeoutFunc is invoked, in its own goroutine, when a room's phase
// deadline passes. The callee must re-check the room's current phase:
// cancellation is advisory and a late fire must become a no-op there.
type TimeoutFunc func(roomID uint)

// Scheduler owns one wall-clock timer handle per room. The persisted
// Room.PhaseEndsAt is the source of truth; the in-process timers are a
// rebuildable cache of it, so any process can recreate the same schedule
// from storage after a restart.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uint]*time.Timer

	onTimeout  TimeoutFunc
	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Scheduler. The sweep interval bounds how late a phase
// can resolve when its in-process timer was lost.
func New(onTimeout TimeoutFunc, sweepEvery time.Duration) *Scheduler {
	return &Scheduler{
		timers:     make(map[uint]*time.Timer),
		onTimeout:  onTimeout,
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
	}
}

// Schedule arms (or re-arms) the room's wake-up for the given deadline,
// replacing any outstanding timer for the room.
func (s *Scheduler) Schedule(roomID uint, at time.Time) {
	delay := time.Until(at)
	if delay < minDelay {
		delay = minDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
	}
	s.timers[roomID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, roomID)
		s.mu.Unlock()
		s.onTimeout(roomID)
	})
}

// Cancel drops the room's outstanding timer, if any. A timer that
// already fired is harmless: the timeout path re-checks current phase.
func (s *Scheduler) Cancel(roomID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

// RestoreOnBoot re-arms wake-ups for every room persisted mid-phase.
// Overdue deadlines are clamped to minDelay so recovery work starts
// promptly without stampeding the moment the process comes up.
func (s *Scheduler) RestoreOnBoot() error {
	var rooms []models.Room
	err := database.DB.Where("phase_ends_at IS NOT NULL").Find(&rooms).Error
	if err != nil {
		return err
	}
	for _, room := range rooms {
		// A stale deadline on an untimed phase must not arm a timer.
		if !room.TimedPhase() {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"room":     room.ID,
			"phase":    room.Status,
			"deadline": room.PhaseEndsAt,
		}).Info("re-arming phase timer after boot")
		s.Schedule(room.ID, *room.PhaseEndsAt)
	}
	return nil
}

// Start launches the background sweep. The sweep is the single defense
// against a lost in-process timer: it scans for rooms whose persisted
// deadline has passed and re-invokes resolution for them. Resolution is
// idempotent, so sweeping a room whose timer also fired is harmless.
func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweep.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) sweep() {
	var rooms []models.Room
	err := database.DB.
		Where("phase_ends_at IS NOT NULL AND phase_ends_at < ?", time.Now()).
		Find(&rooms).Error
	if err != nil {
		logrus.WithError(err).Warn("deadline sweep query failed")
		return
	}
	for _, room := range rooms {
		if !room.TimedPhase() {
			continue
		}
		logrus.WithFields(logrus.Fields{"room": room.ID, "phase": room.Status}).
			Debug("sweep found overdue phase")
		go s.onTimeout(room.ID)
	}
}
