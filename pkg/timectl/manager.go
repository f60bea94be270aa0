package timectl

import (
	"time"
)

const (
	safetyBuffer             = 50 * time.Millisecond
	minDurationBetweenChecks = 10 * time.Millisecond
	maxDurationBetweenChecks = 2 * time.Second
	ratioMaximumOverflow     = 3
	movesRemainingEstimate   = 35 // incremental: assumed moves left in the game
	conventionalMovesSafety  = 1  // conventional: margin on the move counter
)

// Manager budgets the time of one search. It observes the engine's clock and tells
// the search when it may continue, when it may start a new iteration, and how many
// nodes to search between interrupt checks.
type Manager interface {
	// SearchStarted establishes the target and maximum budget. Called once, after
	// the clock has been started.
	SearchStarted()
	// IterationStarted marks the beginning of an iteration.
	IterationStarted()
	// IterationCompleted marks the end of an iteration, feeding the estimate of the
	// next iteration's duration.
	IterationCompleted()

	// CanContinue returns true while the search is within its maximum budget. The
	// search polls it every NodesBeforeNextCheck nodes.
	CanContinue() bool
	// CanStartNewIteration returns true if the next iteration is predicted to fit
	// the remaining target budget.
	CanStartNewIteration() bool
	// NodesBeforeNextCheck derives the node count to search before the next
	// CanContinue poll from the observed search speed.
	NodesBeforeNextCheck(nodesSearched uint64) uint64
}

// NewManager returns a manager for the given time control and clock. The clock must
// be the one created for the control.
func NewManager(tc TimeControl, clock Clock) Manager {
	switch t := tc.(type) {
	case PerMove:
		return &perMoveManager{budgetManager: budgetManager{clock: clock}, control: t}
	case Conventional:
		return &conventionalManager{budgetManager: budgetManager{clock: clock}, control: t}
	case Incremental:
		return &incrementalManager{budgetManager: budgetManager{clock: clock}, control: t}
	default:
		panic("unknown time control")
	}
}

// budgetManager is the shared manager core: a target/maximum budget pair plus the
// two-iteration extrapolation of the next iteration's duration.
type budgetManager struct {
	clock Clock

	target, maximum time.Duration

	iterationStart      time.Time
	last, secondLast    time.Duration
	iterationsCompleted int
}

func (m *budgetManager) IterationStarted() {
	m.iterationStart = time.Now()
}

func (m *budgetManager) IterationCompleted() {
	m.secondLast = m.last
	m.last = time.Since(m.iterationStart)
	m.iterationsCompleted++
}

func (m *budgetManager) CanContinue() bool {
	return m.clock.Elapsed() < m.maximum
}

func (m *budgetManager) CanStartNewIteration() bool {
	// Before two completed iterations there is no estimate; keep going.
	if m.iterationsCompleted < 2 || m.secondLast <= 0 {
		return true
	}

	// Extrapolate the next iteration from the growth of the last two. Start it if
	// at least half of it fits before the target time.
	estimate := time.Duration(float64(m.last) * float64(m.last) / float64(m.secondLast))
	return estimate/2 < m.target-m.clock.Elapsed()
}

func (m *budgetManager) NodesBeforeNextCheck(nodesSearched uint64) uint64 {
	elapsed := m.clock.Elapsed()
	if elapsed < minDurationBetweenChecks {
		elapsed = minDurationBetweenChecks
	}
	nps := float64(nodesSearched) / elapsed.Seconds()

	check := (m.maximum - elapsed) / 2
	if check < minDurationBetweenChecks {
		check = minDurationBetweenChecks
	}
	if check > maxDurationBetweenChecks {
		check = maxDurationBetweenChecks
	}

	return uint64(nps * check.Seconds())
}

// perMoveManager spends the fixed budget, less the safety buffer, on every move.
type perMoveManager struct {
	budgetManager
	control PerMove
}

func (m *perMoveManager) SearchStarted() {
	m.target = m.control.MoveTime - safetyBuffer
	m.maximum = m.target
}

// incrementalManager budgets a fraction of the remaining time plus the increment.
type incrementalManager struct {
	budgetManager
	control Incremental
}

func (m *incrementalManager) SearchStarted() {
	onClock := m.clock.TimeOnClock()
	m.target = onClock/movesRemainingEstimate + m.control.Increment
	m.maximum = minDuration(ratioMaximumOverflow*m.target, onClock-safetyBuffer)
}

// conventionalManager budgets toward the next two time controls, whichever is
// tighter.
type conventionalManager struct {
	budgetManager
	control Conventional
}

func (m *conventionalManager) SearchStarted() {
	movesBefore := m.control.Moves
	if c, ok := m.clock.(*conventionalClock); ok {
		movesBefore = c.MovesBeforeControl()
	}
	timeBefore := m.clock.TimeOnClock() - safetyBuffer

	// Target the next control, and the one after: the tighter wins.
	targetCurrent := timeBefore / time.Duration(movesBefore+conventionalMovesSafety)
	movesBeforeSecond := movesBefore + m.control.Moves
	timeBeforeSecond := timeBefore + m.control.Time
	targetNext := timeBeforeSecond / time.Duration(movesBeforeSecond+conventionalMovesSafety)

	m.target = minDuration(targetCurrent, targetNext)

	// With only one move left we may spend the clock; otherwise at most half of it.
	limit := timeBefore
	if movesBefore > 1 {
		limit = timeBefore / 2
	}
	m.maximum = minDuration(ratioMaximumOverflow*m.target, limit) - safetyBuffer
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
