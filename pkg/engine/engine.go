// Package engine contains the engine state machine that coordinates the board,
// clocks, transposition table, search and perft behind a command surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/board/fen"
	"github.com/ferzchess/ferz/pkg/perft"
	"github.com/ferzchess/ferz/pkg/search"
	"github.com/ferzchess/ferz/pkg/timectl"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
)

var version = build.NewVersion(0, 9, 1)

// ErrInvalidCommand indicates a command that is not valid in the engine's current
// state. The command name is carried in the wrapped message.
var ErrInvalidCommand = errors.New("invalid engine command")

func invalidCommand(name string) error {
	return fmt.Errorf("%w: %v", ErrInvalidCommand, name)
}

// State enumerates the engine states. Every command is dispatched against the
// current state; commands not listed for a state fail with ErrInvalidCommand.
type State uint8

const (
	// Observing: the engine plays neither color and just tracks the position.
	Observing State = iota
	// Waiting: the engine plays a color and waits for the user to move.
	Waiting
	// Searching: the engine is searching for its move.
	Searching
	// Perft: a perft computation is running.
	Perft
)

func (s State) String() string {
	switch s {
	case Observing:
		return "observing"
	case Waiting:
		return "waiting"
	case Searching:
		return "searching"
	case Perft:
		return "perft"
	default:
		return "?"
	}
}

// Options are engine options, set at construction and mutable through the setters.
type Options struct {
	// Hash is the transposition table size in MB. If zero, the engine does not use
	// a transposition table.
	Hash uint
	// MaxDepth is the search depth limit.
	MaxDepth int
	// Chess960 renders castling as king-takes-rook in coordinate notation.
	Chess960 bool
	// UseSAN renders moves in standard algebraic notation on the human shell.
	UseSAN bool
}

func (o Options) String() string {
	return fmt.Sprintf("{hash=%v, depth=%v, chess960=%v, san=%v}", o.Hash, o.MaxDepth, o.Chess960, o.UseSAN)
}

// Observer receives user-facing engine events: search progress with rendered moves,
// the engine's move decisions, and perft results. Callbacks arrive on engine or
// worker goroutines; implementations must not call back into the engine.
type Observer interface {
	// SearchStarted is invoked when the engine starts thinking.
	SearchStarted()
	// IterationCompleted is invoked after each search iteration, with the PV
	// rendered according to the notation options.
	IterationCompleted(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64)
	// NewBestMove is invoked when the search changes its mind mid-iteration.
	NewBestMove(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64)
	// SearchCompleted is invoked when the engine has made its move.
	SearchCompleted(move string, pv []string, stats search.Stats)
	// PerftPartial is invoked per root move of a perft computation.
	PerftPartial(move string, count uint64)
	// PerftCompleted is invoked with the perft total.
	PerftCompleted(total uint64, elapsed time.Duration)
}

// Engine owns all chess state and coordinates searches. Its command methods are
// dispatched against the current state per the transition table; they are safe for
// concurrent use with the search completion callbacks.
type Engine struct {
	name, author string

	b           *board.Board
	fullmoves   int
	engineColor board.Color

	timeControl timectl.TimeControl
	clock       timectl.Clock
	tt          search.TranspositionTable
	searcher    *search.Searcher
	perft       *perft.Perft

	opts Options
	obs  Observer

	state     State
	searching bool
	mu        sync.Mutex

	ctx context.Context
}

// nopObserver drops all events, until a shell adapter attaches.
type nopObserver struct{}

func (nopObserver) SearchStarted() {}
func (nopObserver) IterationCompleted(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}
func (nopObserver) NewBestMove(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}
func (nopObserver) SearchCompleted(move string, pv []string, stats search.Stats) {}
func (nopObserver) PerftPartial(move string, count uint64)                       {}
func (nopObserver) PerftCompleted(total uint64, elapsed time.Duration)           {}

// New returns an engine in the Observing state on the standard starting position.
func New(ctx context.Context, name, author string, opts Options) *Engine {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 64
	}

	e := &Engine{
		name:        name,
		author:      author,
		obs:         nopObserver{},
		opts:        opts,
		engineColor: board.Black,
		timeControl: timectl.Conventional{Moves: 40, Time: 5 * time.Minute},
		searcher:    &search.Searcher{},
		ctx:         ctx,
	}
	e.searcher.Attach(e)
	e.clock = timectl.NewClock(e.timeControl)

	e.tt = search.NoTranspositionTable{}
	if opts.Hash > 0 {
		e.tt = search.NewTranspositionTable(ctx, uint64(opts.Hash))
	}

	e.b, e.fullmoves, _ = fen.Decode(fen.Initial)

	logw.Infof(ctx, "Initialized engine: %v, options=%v", e.Name(), opts)
	return e
}

// SetObserver attaches the shell observer. Must be called before commands are
// issued.
func (e *Engine) SetObserver(obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.obs = obs
}

// Name returns the engine name and version.
func (e *Engine) Name() string {
	return fmt.Sprintf("%v %v", e.name, version)
}

// Author returns the author.
func (e *Engine) Author() string {
	return e.author
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Options returns the current options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.opts
}

// EngineColor returns the color the engine plays when it is not observing.
func (e *Engine) EngineColor() board.Color {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.engineColor
}

// Position returns the current position in XFEN format.
func (e *Engine) Position() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fen.Encode(e.b, e.fullmoves)
}

// Board returns a copy of the current board.
func (e *Engine) Board() *board.Board {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.b.Clone()
}

// SetFEN replaces the board. Valid in Observing.
func (e *Engine) SetFEN(position string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Observing {
		return invalidCommand("setboard")
	}

	b, fullmoves, err := fen.Decode(position)
	if err != nil {
		return err
	}
	e.b = b
	e.fullmoves = fullmoves

	logw.Infof(e.ctx, "New board: %v", e.b)
	return nil
}

// UserMove plays the given user move. In Observing the move is simply made; in
// Waiting the engine answers by searching. The notation may be SAN or coordinate.
func (e *Engine) UserMove(str string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing:
		return e.makeUserMove(str)

	case Waiting:
		if err := e.makeUserMove(str); err != nil {
			return err
		}
		e.transition(Searching)
		return nil

	default:
		return invalidCommand("usermove")
	}
}

// Go sets the engine to play the side to move and starts searching. Valid in
// Observing and Waiting.
func (e *Engine) Go() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing, Waiting:
		e.engineColor = e.b.SideToMove()
		e.transition(Searching)
		return nil
	default:
		return invalidCommand("go")
	}
}

// Force sets the engine to play neither color, aborting any search without making a
// move. Valid in Waiting and Searching.
func (e *Engine) Force() error {
	e.mu.Lock()

	switch e.state {
	case Waiting:
		e.transition(Observing)
		e.mu.Unlock()
		return nil

	case Searching:
		// Claim the search: the completion callback that finds searching false must
		// not transition nor publish a move.
		e.searching = false
		e.searcher.Stop()
		e.mu.Unlock()

		e.searcher.Wait()

		e.mu.Lock()
		e.transition(Observing)
		e.mu.Unlock()
		return nil

	default:
		e.mu.Unlock()
		return invalidCommand("force")
	}
}

// Stop stops the current operation: a search publishes its best move so far and the
// engine keeps playing; a perft is aborted. Valid in Searching and Perft.
func (e *Engine) Stop() error {
	e.mu.Lock()

	switch e.state {
	case Searching:
		e.searcher.Stop()
		e.mu.Unlock()

		// The completion callback transitions to Waiting with the latest PV.
		e.searcher.Wait()
		return nil

	case Perft:
		p := e.perft
		e.perft = nil
		e.transition(Observing)
		e.mu.Unlock()

		p.Abort()
		return nil

	case Waiting:
		// The search completed concurrently with the stop. Not an error.
		e.mu.Unlock()
		return nil

	default:
		e.mu.Unlock()
		return invalidCommand("stop")
	}
}

// NewGame resets the board and clock for a new game, with the engine playing black.
// Valid in Observing and Waiting.
func (e *Engine) NewGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing, Waiting:
		e.b, e.fullmoves, _ = fen.Decode(fen.Initial)
		e.engineColor = board.Black
		e.clock = timectl.NewClock(e.timeControl)
		e.tt.NewSearch()
		e.transition(Waiting)

		logw.Infof(e.ctx, "New game: %v", e.b)
		return nil
	default:
		return invalidCommand("new")
	}
}

// RunPerft starts a perft computation of the given depth. Valid in Observing.
func (e *Engine) RunPerft(depth, workers int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Observing {
		return invalidCommand("perft")
	}
	if depth < 1 {
		return fmt.Errorf("invalid perft depth: %v", depth)
	}

	e.perft = perft.New(e.b, depth, workers)
	e.transition(Perft)
	return nil
}

// SetTimeControl replaces the time control and resets the clock. Valid in Observing
// and Waiting.
func (e *Engine) SetTimeControl(tc timectl.TimeControl) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing, Waiting:
		e.timeControl = tc
		e.clock = timectl.NewClock(tc)

		logw.Infof(e.ctx, "Time control: %v", tc)
		return nil
	default:
		return invalidCommand("time control")
	}
}

// SetDepth sets the maximum search depth. Valid in Observing and Waiting.
func (e *Engine) SetDepth(depth int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing, Waiting:
		if depth < 1 {
			return fmt.Errorf("invalid depth: %v", depth)
		}
		e.opts.MaxDepth = depth
		return nil
	default:
		return invalidCommand("depth")
	}
}

// SetHash resizes the transposition table. Valid in Observing and Waiting.
func (e *Engine) SetHash(megabytes uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Observing, Waiting:
		e.opts.Hash = megabytes

		switch {
		case megabytes == 0:
			e.tt = search.NoTranspositionTable{}
		case e.tt == (search.NoTranspositionTable{}):
			e.tt = search.NewTranspositionTable(e.ctx, uint64(megabytes))
		default:
			e.tt.Resize(e.ctx, uint64(megabytes))
		}
		return nil
	default:
		return invalidCommand("hash")
	}
}

// SetChess960 toggles Chess960 move rendering.
func (e *Engine) SetChess960(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opts.Chess960 = on
}

// SetUseSAN toggles SAN move rendering on the human shell.
func (e *Engine) SetUseSAN(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opts.UseSAN = on
}

// makeUserMove parses and makes a user move. Caller holds the lock.
func (e *Engine) makeUserMove(str string) error {
	m, err := board.ParseSAN(str, e.b)
	if err != nil {
		// SAN subsumes neither castling-as-coordinates nor Chess960 king-takes-rook;
		// fall back to coordinate notation.
		m, err = board.ParseCoordinate(str, e.b)
		if err != nil {
			return err
		}
	}

	resolved, ok := e.resolveLegal(m)
	if !ok {
		return fmt.Errorf("%w: %v", board.ErrInvalidMove, str)
	}

	e.makeMove(resolved)
	logw.Infof(e.ctx, "User move %v: %v", str, e.b)
	return nil
}

// resolveLegal matches a parsed move against the generated legal moves, returning
// the generated move with its full context. Caller holds the lock.
func (e *Engine) resolveLegal(m board.Move) (board.Move, bool) {
	for _, legal := range board.LegalMoves(e.b) {
		if legal.Castle() == m.Castle() && legal.Equals(m) {
			return legal, true
		}
	}
	return board.NullMove, false
}

// makeMove makes a move and maintains the fullmove counter. Caller holds the lock.
func (e *Engine) makeMove(m board.Move) {
	e.b.Make(m)
	if e.b.SideToMove() == board.White {
		e.fullmoves++
	}
}

// transition moves the engine to a new state, running the outgoing state's teardown
// and the incoming state's setup. Caller holds the lock.
func (e *Engine) transition(next State) {
	logw.Debugf(e.ctx, "State %v -> %v", e.state, next)

	// End the outgoing state.
	switch e.state {
	case Searching:
		if e.clock.IsRunning() {
			e.clock.Stop()
		}
	}

	e.state = next

	// Begin the incoming state.
	switch next {
	case Searching:
		e.clock.Start()
		e.searching = true

		tm := timectl.NewManager(e.timeControl, e.clock)
		s := search.New(e.b.Clone(), tm, e.tt, e.opts.MaxDepth)
		e.searcher.Start(e.ctx, s)

	case Perft:
		e.perft.RunParallel(e.ctx, perftObserver{e})
	}
}

// SearchStarted implements search.Observer.
func (e *Engine) SearchStarted() {
	e.obs.SearchStarted()
}

// IterationStarted implements search.Observer.
func (e *Engine) IterationStarted(depth int) {}

// NewBestMove implements search.Observer.
func (e *Engine) NewBestMove(pv search.PV) {
	e.obs.NewBestMove(e.renderPV(pv.Moves), pv.Score, pv.Depth, pv.Time, pv.Nodes)
}

// IterationCompleted implements search.Observer.
func (e *Engine) IterationCompleted(pv search.PV) {
	e.obs.IterationCompleted(e.renderPV(pv.Moves), pv.Score, pv.Depth, pv.Time, pv.Nodes)
}

// SearchCompleted implements search.Observer. It makes the engine's move and
// transitions to Waiting, unless a force claimed the search first.
func (e *Engine) SearchCompleted(pv search.PV, stats search.Stats) {
	e.mu.Lock()

	if e.state != Searching || !e.searching {
		e.mu.Unlock()
		return // raced with force: do not transition
	}
	e.searching = false

	var moveStr string
	var pvStrs []string
	if best, ok := pv.Best(); ok {
		pvStrs = e.renderPVLocked(pv.Moves)
		moveStr = pvStrs[0]
		e.makeMove(best)
	}
	e.transition(Waiting)
	e.mu.Unlock()

	logw.Infof(e.ctx, "Search completed: %v, %v", moveStr, stats)
	e.obs.SearchCompleted(moveStr, pvStrs, stats)
}

// renderPV renders a move sequence per the notation options.
func (e *Engine) renderPV(moves []board.Move) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.renderPVLocked(moves)
}

// renderPVLocked renders a move sequence by walking it on the board with
// make/unmake. Caller holds the lock.
func (e *Engine) renderPVLocked(moves []board.Move) []string {
	var ret []string
	var undo []board.UnmakeInfo

	for _, m := range moves {
		if e.opts.UseSAN {
			ret = append(ret, board.RenderSAN(m, e.b))
		} else {
			ret = append(ret, board.RenderCoordinate(m, e.b, e.opts.Chess960))
		}
		undo = append(undo, e.b.Make(m))
	}
	for i := len(moves) - 1; i >= 0; i-- {
		e.b.Unmake(moves[i], undo[i])
	}
	return ret
}

// perftObserver adapts perft events to the engine, transitioning back to Observing
// on completion.
type perftObserver struct {
	e *Engine
}

func (o perftObserver) PartialResult(move board.Move, count uint64) {
	o.e.obs.PerftPartial(move.String(), count)
}

func (o perftObserver) Result(total uint64, elapsed time.Duration) {
	o.e.mu.Lock()
	if o.e.state == Perft {
		o.e.perft = nil
		o.e.transition(Observing)
	}
	o.e.mu.Unlock()

	o.e.obs.PerftCompleted(total, elapsed)
}
