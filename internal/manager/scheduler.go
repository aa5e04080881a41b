package manager

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/update"
)

// Default schedule.
const (
	DefaultCheckInterval = 2 * time.Hour
	DefaultInitialDelay  = 3 * time.Second
)

// Checker runs one update attempt.
type Checker interface {
	CheckAndUpdate(ctx context.Context, silent bool) update.Outcome
}

// Scheduler re-enters the checker in silent mode: once after InitialDelay,
// then every Interval until stopped.
type Scheduler struct {
	Interval     time.Duration
	InitialDelay time.Duration

	checker Checker
	onCheck func(update.Outcome)
	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for checker.
func NewScheduler(checker Checker, interval, initialDelay time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	return &Scheduler{
		Interval:     interval,
		InitialDelay: initialDelay,
		checker:      checker,
		trigger:      make(chan struct{}, 1),
	}
}

// OnCheck registers a callback that receives every scheduled outcome.
func (s *Scheduler) OnCheck(fn func(update.Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCheck = fn
}

// CheckNow asks a running scheduler for an immediate check. The next periodic
// check is then due one Interval later. Requests made while a check is pending
// are coalesced.
func (s *Scheduler) CheckNow() {
	if s.trigger == nil {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start launches the schedule. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		log.Errorf("update scheduler already started")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the schedule and any in-flight check, and waits for the loop
// to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			log.Debug("update check requested")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.run(ctx)
		timer.Reset(s.Interval)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	log.Debug("scheduled update check")
	outcome := s.checker.CheckAndUpdate(ctx, true)

	s.mu.Lock()
	fn := s.onCheck
	s.mu.Unlock()
	if fn != nil {
		fn(outcome)
	}
}
