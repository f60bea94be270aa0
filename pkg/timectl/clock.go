package timectl

import (
	"time"

	"github.com/seekerror/stdlib/pkg/lang"
)

// Clock represents the chess clock of one player. Start and Stop must alternate:
// starting a running clock or stopping a stopped one is an internal error.
type Clock interface {
	// Start starts the clock. The clock must be stopped.
	Start()
	// Stop stops the clock, typically when a move is made. The clock must be
	// running. Stopping may add time back, depending on the time control.
	Stop()
	// Elapsed returns the time since the clock was started, or 0 if stopped.
	Elapsed() time.Duration
	// TimeOnClock returns the remaining time, accounting for running elapsed time.
	TimeOnClock() time.Duration
	// IsRunning returns true iff the clock is running.
	IsRunning() bool
}

// NewClock returns a clock for the given time control.
func NewClock(tc TimeControl) Clock {
	switch t := tc.(type) {
	case PerMove:
		return &perMoveClock{clock: clock{remaining: t.MoveTime}, moveTime: t.MoveTime}
	case Conventional:
		return &conventionalClock{clock: clock{remaining: t.Time}, control: t, movesBeforeControl: t.Moves}
	case Incremental:
		return &incrementalClock{clock: clock{remaining: t.Base + t.Increment}, increment: t.Increment}
	default:
		panic("unknown time control")
	}
}

// clock is the shared clock core.
type clock struct {
	remaining time.Duration
	start     lang.Optional[time.Time]
}

func (c *clock) Start() {
	if c.IsRunning() {
		panic("clock already running")
	}
	c.start = lang.Some(time.Now())
}

func (c *clock) Stop() {
	if !c.IsRunning() {
		panic("clock not running")
	}
	c.remaining -= c.Elapsed()
	c.start = lang.Optional[time.Time]{}
}

func (c *clock) Elapsed() time.Duration {
	if t, ok := c.start.V(); ok {
		return time.Since(t)
	}
	return 0
}

func (c *clock) TimeOnClock() time.Duration {
	return c.remaining - c.Elapsed()
}

func (c *clock) IsRunning() bool {
	_, ok := c.start.V()
	return ok
}

// perMoveClock resets to the fixed budget on every stop.
type perMoveClock struct {
	clock
	moveTime time.Duration
}

func (c *perMoveClock) Stop() {
	c.clock.Stop()
	c.remaining = c.moveTime
}

// conventionalClock adds the control time back every control.Moves stops.
type conventionalClock struct {
	clock
	control            Conventional
	movesBeforeControl int
}

func (c *conventionalClock) Stop() {
	c.clock.Stop()

	c.movesBeforeControl--
	if c.movesBeforeControl == 0 {
		c.movesBeforeControl = c.control.Moves
		c.remaining += c.control.Time
	}
}

// MovesBeforeControl returns the number of moves until the next time control.
func (c *conventionalClock) MovesBeforeControl() int {
	return c.movesBeforeControl
}

// incrementalClock adds the increment on every stop.
type incrementalClock struct {
	clock
	increment time.Duration
}

func (c *incrementalClock) Stop() {
	c.clock.Stop()
	c.remaining += c.increment
}
