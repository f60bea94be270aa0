// Package uci contains a driver for using the engine under the UCI protocol.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
package uci

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/board/fen"
	"github.com/ferzchess/ferz/pkg/engine"
	"github.com/ferzchess/ferz/pkg/search"
	"github.com/ferzchess/ferz/pkg/timectl"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"go.uber.org/atomic"
)

const ProtocolName = "uci"

// infiniteTime stands in for "search until told to stop".
const infiniteTime = 1000 * time.Hour

// Driver implements a UCI driver for the engine. It is activated when the first
// input line is "uci".
type Driver struct {
	iox.AsyncCloser

	e   *engine.Engine
	out chan string

	// active is set while the GUI is waiting for a bestmove.
	active atomic.Bool
}

func NewDriver(ctx context.Context, e *engine.Engine, in <-chan string) (*Driver, <-chan string) {
	out := make(chan string, 100)
	d := &Driver{
		AsyncCloser: iox.NewAsyncCloser(),
		e:           e,
		out:         out,
	}
	e.SetObserver(d)
	go d.process(ctx, in)

	return d, out
}

func (d *Driver) process(ctx context.Context, in <-chan string) {
	defer d.Close()
	defer close(d.out)

	logw.Infof(ctx, "UCI protocol initialized")

	d.out <- fmt.Sprintf("id name %v", d.e.Name())
	d.out <- fmt.Sprintf("id author %v", d.e.Author())
	d.out <- "option name Hash type spin default 64 min 0 max 4096"
	d.out <- "option name UCI_Chess960 type check default false"
	d.out <- "uciok"

	for {
		select {
		case line, ok := <-in:
			if !ok {
				logw.Infof(ctx, "Input stream broken. Exiting")
				return
			}

			parts := strings.Fields(strings.TrimSpace(line))
			if len(parts) == 0 {
				break
			}

			cmd := parts[0]
			args := parts[1:]

			switch strings.ToLower(cmd) {
			case "isready":
				d.out <- "readyok"

			case "debug", "register", "ponderhit":
				// accepted, nothing to do

			case "setoption":
				d.setOption(ctx, args)

			case "ucinewgame":
				d.ensureObserving(ctx)

			case "position":
				d.position(ctx, line, args)

			case "go":
				d.handleGo(ctx, line, args)

			case "stop":
				if err := d.e.Stop(); err != nil {
					logw.Warningf(ctx, "Stop failed: %v", err)
				}

			case "quit":
				d.ensureObserving(ctx)
				return

			default:
				logw.Warningf(ctx, "Unknown command '%v': %v", cmd, args)
			}

		case <-d.Closed():
			d.ensureObserving(ctx)

			logw.Infof(ctx, "Driver closed")
			return
		}
	}
}

// ensureObserving halts any activity and puts the engine in the Observing state,
// which is where the UCI protocol keeps it between searches.
func (d *Driver) ensureObserving(ctx context.Context) {
	d.active.Store(false)
	for _, fn := range []func() error{d.e.Stop, d.e.Force} {
		if err := fn(); err != nil && !errors.Is(err, engine.ErrInvalidCommand) {
			logw.Warningf(ctx, "Reset failed: %v", err)
		}
	}
}

// setOption handles "setoption name <id> [value <x>]".
func (d *Driver) setOption(ctx context.Context, args []string) {
	var name, value string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "name":
			if i+1 < len(args) {
				name = args[i+1]
			}
		case "value":
			if i+1 < len(args) {
				value = args[i+1]
			}
		}
	}

	switch strings.ToLower(name) {
	case "hash", "tt_size":
		if mb, err := strconv.Atoi(value); err == nil && mb >= 0 {
			if err := d.e.SetHash(uint(mb)); err != nil {
				logw.Warningf(ctx, "setoption %v failed: %v", name, err)
			}
		}
	case "uci_chess960":
		on, _ := strconv.ParseBool(value)
		d.e.SetChess960(on)
	case "use_san":
		on, _ := strconv.ParseBool(value)
		d.e.SetUseSAN(on)
	default:
		logw.Warningf(ctx, "Unknown option: %v", name)
	}
}

// position handles "position [fen <fenstring> | startpos] [moves <move1> ...]".
func (d *Driver) position(ctx context.Context, line string, args []string) {
	d.ensureObserving(ctx)

	position := fen.Initial
	if len(args) >= 7 && args[0] == "fen" {
		position = strings.Join(args[1:7], " ")
	}
	if err := d.e.SetFEN(position); err != nil {
		logw.Errorf(ctx, "Invalid position: %v: %v", line, err)
		return
	}

	move := false
	for _, arg := range args {
		if arg == "moves" {
			move = true
			continue
		}
		if !move {
			continue
		}
		if err := d.e.UserMove(arg); err != nil {
			logw.Errorf(ctx, "Invalid position move '%v': %v: %v", arg, line, err)
			return
		}
	}
}

// handleGo handles "go [wtime|btime|winc|binc|movestogo|depth|movetime|infinite ...]".
func (d *Driver) handleGo(ctx context.Context, line string, args []string) {
	var wtime, btime, winc, binc, movetime time.Duration
	var movestogo, depth int
	infinite := false

	for i := 0; i < len(args); i++ {
		cmd := args[i]
		switch cmd {
		case "wtime", "btime", "winc", "binc", "movestogo", "depth", "movetime", "nodes", "mate":
			i++
			if i == len(args) {
				logw.Errorf(ctx, "No argument for %v: %v", cmd, line)
				return
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				logw.Errorf(ctx, "Invalid argument for %v: %v", line, err)
				return
			}

			switch cmd {
			case "wtime":
				wtime = time.Duration(n) * time.Millisecond
			case "btime":
				btime = time.Duration(n) * time.Millisecond
			case "winc":
				winc = time.Duration(n) * time.Millisecond
			case "binc":
				binc = time.Duration(n) * time.Millisecond
			case "movestogo":
				movestogo = n
			case "depth":
				depth = n
			case "movetime":
				movetime = time.Duration(n) * time.Millisecond
			}

		case "infinite", "ponder":
			infinite = true

		default:
			// silently ignore anything not handled, per protocol custom
		}
	}

	tc, err := resolveTimeControl(d.e.Board().SideToMove(), wtime, btime, winc, binc, movestogo, movetime, depth, infinite)
	if err != nil {
		logw.Errorf(ctx, "%v: %v", err, line)
		d.out <- fmt.Sprintf("info string error (%v): %v", err, line)
		return
	}

	if depth > 0 {
		if err := d.e.SetDepth(depth); err != nil {
			logw.Warningf(ctx, "SetDepth failed: %v", err)
		}
	}
	if err := d.e.SetTimeControl(tc); err != nil {
		logw.Warningf(ctx, "SetTimeControl failed: %v", err)
	}

	d.active.Store(true)
	if err := d.e.Go(); err != nil {
		d.active.Store(false)
		logw.Errorf(ctx, "Go failed: %v", err)
	}
}

// resolveTimeControl maps go parameters to one of the engine's time controls.
func resolveTimeControl(us board.Color, wtime, btime, winc, binc time.Duration, movestogo int, movetime time.Duration, depth int, infinite bool) (timectl.TimeControl, error) {
	ours, inc := wtime, winc
	if us == board.Black {
		ours, inc = btime, binc
	}

	switch {
	case movetime > 0:
		return timectl.PerMove{MoveTime: movetime}, nil
	case ours > 0 && movestogo > 0:
		return timectl.Conventional{Moves: movestogo, Time: ours}, nil
	case ours > 0:
		return timectl.Incremental{Base: ours, Increment: inc}, nil
	case infinite || depth > 0:
		return timectl.PerMove{MoveTime: infiniteTime}, nil
	case inc > 0 || movestogo > 0:
		return nil, timectl.ErrUnsupportedTimeControl
	default:
		// A bare go searches until stopped.
		return timectl.PerMove{MoveTime: infiniteTime}, nil
	}
}

// SearchStarted implements engine.Observer.
func (d *Driver) SearchStarted() {}

// IterationCompleted implements engine.Observer.
func (d *Driver) IterationCompleted(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
	if d.active.Load() {
		d.out <- printInfo(pv, score, depth, elapsed, nodes)
	}
}

// NewBestMove implements engine.Observer.
func (d *Driver) NewBestMove(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}

// SearchCompleted implements engine.Observer.
func (d *Driver) SearchCompleted(move string, pv []string, stats search.Stats) {
	if !d.active.CompareAndSwap(true, false) {
		return // stale or duplicate result
	}

	if move == "" {
		// No PV: the position is checkmate or stalemate. Send the null move.
		d.out <- "bestmove 0000"
		return
	}
	d.out <- fmt.Sprintf("bestmove %v", move)
}

// PerftPartial implements engine.Observer.
func (d *Driver) PerftPartial(move string, count uint64) {
	d.out <- fmt.Sprintf("info string %v: %v", move, count)
}

// PerftCompleted implements engine.Observer.
func (d *Driver) PerftCompleted(total uint64, elapsed time.Duration) {
	d.out <- fmt.Sprintf("info string perft %v nodes in %v", total, elapsed)
}

// printInfo renders an info line, e.g.
// "info depth 2 score cp 214 nodes 2124 time 1242 nps 1710 pv e2e4 e7e5 g1f3".
func printInfo(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) string {
	parts := []string{"info", fmt.Sprintf("depth %v", depth)}

	if dist, ok := score.MateDistance(); ok {
		moves := (dist + 1) / 2
		if score < 0 {
			moves = -moves
		}
		parts = append(parts, fmt.Sprintf("score mate %v", moves))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %v", int(score)))
	}

	if nodes > 0 {
		parts = append(parts, fmt.Sprintf("nodes %v", nodes))
	}
	if elapsed > 0 {
		parts = append(parts, fmt.Sprintf("time %v", elapsed.Milliseconds()))
		if nodes > 0 {
			parts = append(parts, fmt.Sprintf("nps %v", uint64(time.Second)*nodes/uint64(elapsed)))
		}
	}
	if len(pv) > 0 {
		parts = append(parts, "pv", strings.Join(pv, " "))
	}
	return strings.Join(parts, " ")
}
