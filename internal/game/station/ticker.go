package station

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ticker drives a Simulation at a fixed wall-clock cadence. Each tick advances
// a simulated clock by interval times the time scale.
type Ticker struct {
	interval time.Duration
	scale    float64
	sim      *Simulation
	logger   *zap.Logger
	now      func() time.Time
	onTick   func(TickReport)
	done     chan struct{}
}

// NewTicker returns a Ticker that calls sim.Tick every interval. onTick, if
// non-nil, receives every report.
//
// Precondition: interval must be > 0; sim must be non-nil.
func NewTicker(interval time.Duration, sim *Simulation, onTick func(TickReport), logger *zap.Logger) *Ticker {
	if interval <= 0 {
		panic("station.NewTicker: interval must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{
		interval: interval,
		scale:    1,
		sim:      sim,
		logger:   logger,
		now:      time.Now,
		onTick:   onTick,
		done:     make(chan struct{}),
	}
}

// SetTimeScale makes every tick advance the simulation by interval*scale.
//
// Precondition: scale > 0; called before Start.
func (t *Ticker) SetTimeScale(scale float64) {
	if scale > 0 {
		t.scale = scale
	}
}

// Start begins the tick loop in its own goroutine. It runs until ctx is
// cancelled, after which Done is closed. Tick errors are logged, never fatal.
//
// Precondition: Start is called at most once.
func (t *Ticker) Start(ctx context.Context) {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		dt := time.Duration(float64(t.interval) * t.scale)
		clock := t.now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				clock = clock.Add(dt)
				rep, err := t.sim.Tick(ctx, clock, dt)
				if err != nil {
					t.logger.Error("world tick", zap.Int("tick", rep.Tick), zap.Error(err))
				}
				if t.onTick != nil {
					t.onTick(rep)
				}
			}
		}
	}()
}

// Done is closed once the tick loop has exited.
func (t *Ticker) Done() <-chan struct{} { return t.done }
