package jsonpatch

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Scheduler decides when an observer flushes after Observer.Notify.
// Trigger may be called from any goroutine. Stop cancels pending flushes.
type Scheduler interface {
	Trigger(flush func())
	Stop()
}

// ImmediateScheduler flushes synchronously on every trigger.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Trigger(flush func()) { flush() }
func (ImmediateScheduler) Stop()                {}

// DebounceScheduler flushes once a burst of triggers has been quiet for the
// configured delay. Each trigger restarts the delay.
type DebounceScheduler struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewDebounceScheduler(delay time.Duration) *DebounceScheduler {
	return &DebounceScheduler{delay: delay}
}

func (s *DebounceScheduler) Trigger(flush func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			flush()
		}
	})
}

func (s *DebounceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// RateScheduler flushes at most once per interval. Triggers arriving while a
// flush is pending are folded into it.
type RateScheduler struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	pending *time.Timer
	stopped bool
}

// NewRateScheduler uses 0 or a negative interval for no throttling.
func NewRateScheduler(interval time.Duration) *RateScheduler {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateScheduler{limiter: rate.NewLimiter(limit, 1)}
}

func (s *RateScheduler) Trigger(flush func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.pending != nil {
		return
	}
	delay := s.limiter.Reserve().Delay()
	s.pending = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.pending = nil
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			flush()
		}
	})
}

func (s *RateScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.pending != nil {
		s.pending.Stop()
	}
}
