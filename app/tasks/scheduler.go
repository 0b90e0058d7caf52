package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrRunPending = errors.New("a run is already pending")

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs the digest at start, on every interval tick and on demand.
// Runs never overlap.
type Scheduler struct {
	digest   *DigestTask
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	trigger  chan struct{}

	runMu   sync.Mutex
	stateMu sync.RWMutex
	lastRun *RunSummary
}

func NewScheduler(digest *DigestTask, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		digest:   digest,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runLogged()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runLogged()
			case <-s.trigger:
				s.runLogged()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Trigger requests a run as soon as the current one, if any, finishes.
func (s *Scheduler) Trigger() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrRunPending
	}
}

// Run executes the digest once and records its summary.
func (s *Scheduler) Run(ctx context.Context) (RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.digest.Start()
	err := s.digest.Execute(ctx)
	summary := s.digest.Summary()

	s.stateMu.Lock()
	s.lastRun = &summary
	s.stateMu.Unlock()

	return summary, err
}

func (s *Scheduler) LastRun() *RunSummary {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.lastRun == nil {
		return nil
	}
	summary := *s.lastRun
	return &summary
}

func (s *Scheduler) runLogged() {
	if _, err := s.Run(s.ctx); err != nil {
		slog.Error("Digest run failed", "error", err)
	}
}
