// Package notifier is the async alert pipeline between the trigger engine
// and the delivery adapters: bounded queue, worker pool, rate limit, and a
// short dedup window.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindd/internal/eventbus"
	logx "remindd/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Service struct {
	log     logx.Logger
	adapter Adapter
	bus     eventbus.Bus

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	queue  chan Alert
	stopCh chan struct{}
	wg     sync.WaitGroup

	dmu   sync.Mutex
	dedup map[string]time.Time // reminder id -> suppress until
}

func New(cfg Config, adapter Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		log:     log,
		adapter: adapter,
		bus:     bus,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		dedup:   map[string]time.Time{},
	}
}

// Apply updates rate/dedup knobs at runtime. Queue size and worker count
// only change across a restart.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg.RatePerSec = cfg.RatePerSec
	s.cfg.DedupWindow = cfg.DedupWindow
	s.cfg.SendTimeout = cfg.SendTimeout
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan Alert, s.cfg.QueueSize)
	workers := s.cfg.Workers
	stopCh, queue := s.stopCh, s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx, stopCh, queue)
		}()
	}
	s.log.Info("notifier started", logx.Int("workers", workers))
}

func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("notifier stopped")
}

// Notify enqueues an alert. It never blocks: a full queue is reported as
// ErrQueueFull and the alert is dropped (the caller logs it).
func (s *Service) Notify(a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}

	s.mu.Lock()
	queue := s.queue
	stopped := s.stopCh == nil
	s.mu.Unlock()
	if stopped || queue == nil {
		return ErrStopped
	}

	select {
	case queue <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan Alert) {
	for {
		// fast-exit so stop wins over queued work
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case a := <-queue:
			s.deliver(ctx, a)
		}
	}
}

func (s *Service) deliver(ctx context.Context, a Alert) {
	if s.suppressed(a) {
		s.log.Debug("alert deduplicated", logx.String("id", a.ReminderID))
		return
	}

	s.mu.Lock()
	lim := s.limiter
	timeout := s.cfg.SendTimeout
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	err := s.adapter.Send(sctx, a)
	cancel()
	if err != nil {
		s.log.Error("alert delivery failed", logx.String("id", a.ReminderID), logx.Err(err))
		return
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventReminderFired, Data: a.ReminderID})
	}
}

func (s *Service) suppressed(a Alert) bool {
	s.mu.Lock()
	window := s.cfg.DedupWindow
	s.mu.Unlock()
	if window <= 0 {
		return false
	}

	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[a.ReminderID]; ok && now.Before(until) {
		return true
	}
	s.dedup[a.ReminderID] = now.Add(window)
	// Opportunistic prune so the map tracks the active set, not history.
	for id, until := range s.dedup {
		if now.After(until) {
			delete(s.dedup, id)
		}
	}
	return false
}
