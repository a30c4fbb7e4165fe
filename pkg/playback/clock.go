// ABOUTME: Ticker abstraction for the supervision loop
// ABOUTME: Wraps time.Ticker so tests can drive ticks by hand
package playback

import "time"

// DefaultTickInterval is the supervision and progress interval
const DefaultTickInterval = 50 * time.Millisecond

// Ticker delivers supervision ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker returns a Ticker backed by time.Ticker
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }
