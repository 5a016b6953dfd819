package blacklist

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper runs CleanupExpired on a fixed interval, decoupled from request
// handling. Multiple sweepers over the same store are safe; the sweep is
// idempotent.
type Sweeper struct {
	store    Store
	interval time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSweeper starts a background sweep loop. Intervals below one second
// are clamped to one second.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval < time.Second {
		interval = time.Second
	}

	s := &Sweeper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.store.CleanupExpired(context.Background()); err != nil {
				log.Print("sessionguard: blacklist sweep failed")
			}
		case <-s.done:
			return
		}
	}
}

// Close stops the sweep loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
