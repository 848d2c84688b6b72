package poll

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// TickPeriod is how often the host tick source increments the counter.
const TickPeriod = 10 * time.Millisecond

// TickCounter counts fixed-period ticks since the last active sensor
// completion. The host increments it from its own goroutine; the estimator
// reads and resets it from the engine's tick, so accesses are atomic.
type TickCounter struct {
	n atomic.Int64
}

func (t *TickCounter) Inc()        { t.n.Inc() }
func (t *TickCounter) Load() int64 { return t.n.Load() }
func (t *TickCounter) Reset()      { t.n.Store(0) }

// Run increments the counter every TickPeriod until the context is done.
func (t *TickCounter) Run(ctx context.Context) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Inc()
		}
	}
}

// SensorState tags a per-sensor completion event fed to the estimator.
type SensorState int

const (
	// SensorOff: the sensor at the cursor was disabled, nothing was sent.
	SensorOff SensorState = iota
	// SensorActive: a value was decoded and displayed.
	SensorActive
	// SensorNA: the exchange concluded without usable data.
	SensorNA
)

// RateEstimator derives instantaneous and average sampling rates from the
// stream of completion events and the shared tick counter.
type RateEstimator struct {
	ticks *TickCounter

	initialized bool
	allOff      bool
	inst        float64
	avg         float64
	sum         float64
	samples     int
}

// NewRateEstimator creates an estimator reading the given counter.
func NewRateEstimator(ticks *TickCounter) *RateEstimator {
	return &RateEstimator{ticks: ticks}
}

// Observe consumes one completion event. sensorsOnPage and disabledCount
// describe the active page and size the averaging window.
func (r *RateEstimator) Observe(state SensorState, sensorsOnPage, disabledCount int) {
	if !r.initialized {
		// Nothing meaningful to time until the first decoded value.
		if state == SensorActive {
			r.ticks.Reset()
			r.initialized = true
		}
		return
	}

	if disabledCount >= sensorsOnPage {
		if !r.allOff {
			r.inst = 0
			r.avg = 0
			r.allOff = true
		}
		return
	}

	if state == SensorOff {
		return
	}
	r.allOff = false

	if t := r.ticks.Load(); t > 0 {
		r.inst = 1 / (float64(t) * TickPeriod.Seconds())
	}

	r.sum += r.inst
	r.samples++
	if window := sensorsOnPage - disabledCount; r.samples >= window {
		r.avg = r.sum / float64(r.samples)
		r.sum = 0
		r.samples = 0
	}

	if state == SensorActive {
		r.ticks.Reset()
	}
}

// Rates returns the current instantaneous and average rates in Hz.
func (r *RateEstimator) Rates() (inst, avg float64) {
	return r.inst, r.avg
}

// Reset clears all estimator state, as on a page change.
func (r *RateEstimator) Reset() {
	r.initialized = false
	r.allOff = false
	r.inst = 0
	r.avg = 0
	r.sum = 0
	r.samples = 0
	r.ticks.Reset()
}
