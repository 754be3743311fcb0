package batch

import (
	"sync"
	"time"
)

// ProgressConfig tunes the submission progress estimator.
type ProgressConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Step     int           `yaml:"step" validate:"gt=0"`
	Cap      int           `yaml:"cap" validate:"gt=0,lt=100"`
}

// DefaultProgressConfig advances 10 points every 200ms up to 90.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Interval: 200 * time.Millisecond,
		Step:     10,
		Cap:      90,
	}
}

// estimator advances a progress value on a fixed tick until it reaches the
// cap or is stopped. Reported values never exceed the cap.
type estimator struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// startEstimator calls advance with each new value. advance runs on the
// estimator goroutine.
func startEstimator(cfg ProgressConfig, advance func(progress int)) *estimator {
	e := &estimator{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(e.done)

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		progress := 0
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				progress += cfg.Step
				if progress > cfg.Cap {
					progress = cfg.Cap
				}
				advance(progress)
				if progress >= cfg.Cap {
					return
				}
			}
		}
	}()

	return e
}

// Stop halts the estimator and waits for its goroutine to exit. Safe to call
// more than once.
func (e *estimator) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	<-e.done
}
