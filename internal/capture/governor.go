package capture

import (
	"sync"
	"time"
)

// Recording duration policy. Fixed; not configurable per call.
const (
	MinDuration  = 30 * time.Second
	MaxDuration  = 45 * time.Second
	TickInterval = 200 * time.Millisecond
)

// HasMetMinimum gates the upload action for live recordings.
func HasMetMinimum(elapsed time.Duration) bool {
	return elapsed >= MinDuration
}

// Remaining is the countdown shown while recording, rounded up to whole seconds.
func Remaining(elapsed time.Duration) time.Duration {
	left := MaxDuration - elapsed
	if left <= 0 {
		return 0
	}
	return ((left + time.Second - 1) / time.Second) * time.Second
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Governor is the countdown enforcing the duration bounds of one recording.
type Governor struct {
	clock     func() time.Time
	newTicker func(d time.Duration) ticker

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stop      chan struct{}
}

func NewGovernor() *Governor {
	return &Governor{
		clock: time.Now,
		newTicker: func(d time.Duration) ticker {
			return timeTicker{t: time.NewTicker(d)}
		},
	}
}

// Start begins ticking. onTick receives the elapsed time every TickInterval;
// onMaxReached fires exactly once when elapsed reaches MaxDuration, after which
// the governor stops ticking on its own. Starting a running governor restarts it.
func (g *Governor) Start(onTick func(elapsed time.Duration), onMaxReached func()) {
	g.mu.Lock()
	if g.running {
		close(g.stop)
	}
	stop := make(chan struct{})
	g.stop = stop
	g.running = true
	g.startedAt = g.clock()
	startedAt := g.startedAt
	t := g.newTicker(TickInterval)
	g.mu.Unlock()

	go g.loop(t, startedAt, stop, onTick, onMaxReached)
}

func (g *Governor) loop(t ticker, startedAt time.Time, stop <-chan struct{}, onTick func(time.Duration), onMax func()) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
		}
		// Stop may have raced with the tick.
		select {
		case <-stop:
			return
		default:
		}

		elapsed := g.clock().Sub(startedAt)
		if onTick != nil {
			onTick(elapsed)
		}
		if elapsed >= MaxDuration {
			if onMax != nil {
				onMax()
			}
			return
		}
	}
}

// Stop cancels the tick. Idempotent, and safe to call from inside the callbacks.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	close(g.stop)
	g.running = false
}

// Elapsed is the time since Start, or zero when the governor is not running.
func (g *Governor) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return 0
	}
	return g.clock().Sub(g.startedAt)
}

// Running reports whether the countdown is active.
func (g *Governor) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
