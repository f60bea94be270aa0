// Package console contains a human-facing command-line driver for the engine.
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/engine"
	"github.com/ferzchess/ferz/pkg/search"
	"github.com/ferzchess/ferz/pkg/timectl"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

const ProtocolName = "console"

// Driver implements the human CLI protocol. All output goes through a single out
// channel consumed by one writer, which serializes user-visible text.
type Driver struct {
	iox.AsyncCloser

	e   *engine.Engine
	out chan string
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

	logw.Infof(ctx, "Console protocol initialized")

	d.out <- fmt.Sprintf("%v by %v. Type 'help' for commands.", d.e.Name(), d.e.Author())

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
			case "help":
				d.printHelp()

			case "display", "d":
				d.printBoard()

			case "fen":
				d.out <- d.e.Position()

			case "setboard":
				d.command(ctx, line, func() error {
					return d.e.SetFEN(strings.Join(args, " "))
				})

			case "perft":
				depth := 4
				if len(args) > 0 {
					depth, _ = strconv.Atoi(args[0])
				}
				d.command(ctx, line, func() error {
					return d.e.RunPerft(depth, 0)
				})

			case "go":
				d.command(ctx, line, d.e.Go)

			case "stop":
				d.command(ctx, line, d.e.Stop)

			case "force":
				d.command(ctx, line, d.e.Force)

			case "new":
				d.command(ctx, line, d.e.NewGame)

			case "depth", "sd":
				if len(args) > 0 {
					depth, _ := strconv.Atoi(args[0])
					d.command(ctx, line, func() error {
						return d.e.SetDepth(depth)
					})
				}

			case "st":
				// st <seconds>: fixed time per move.
				if len(args) > 0 {
					sec, _ := strconv.Atoi(args[0])
					d.command(ctx, line, func() error {
						return d.e.SetTimeControl(timectl.PerMove{MoveTime: time.Duration(sec) * time.Second})
					})
				}

			case "level":
				// level <moves> <base-minutes> <increment-seconds>: conventional when
				// the increment is zero, incremental otherwise.
				d.command(ctx, line, func() error {
					tc, err := parseLevel(args)
					if err != nil {
						return err
					}
					return d.e.SetTimeControl(tc)
				})

			case "options":
				opts := d.e.Options()
				d.out <- fmt.Sprintf("hash=%v depth=%v chess960=%v use_san=%v", opts.Hash, opts.MaxDepth, opts.Chess960, opts.UseSAN)

			case "option":
				d.command(ctx, line, func() error {
					return d.setOption(args)
				})

			case "usermove":
				if len(args) > 0 {
					d.userMove(ctx, args[0])
				}

			case "exit", "quit", "q":
				_ = d.e.Force()
				return

			default:
				// Assume a bare move if not a recognized command.
				if looksLikeMove(cmd) {
					d.userMove(ctx, cmd)
				} else {
					d.out <- fmt.Sprintf("Command not found: %v", cmd)
				}
			}

		case <-d.Closed():
			logw.Infof(ctx, "Driver closed")
			return
		}
	}
}

// command runs an engine command, rendering any error as a single user line.
func (d *Driver) command(ctx context.Context, line string, fn func() error) {
	if err := fn(); err != nil {
		logw.Warningf(ctx, "Command failed: %v: %v", line, err)
		d.out <- fmt.Sprintf("Error (%v): %v", err, line)
	}
}

func (d *Driver) userMove(ctx context.Context, str string) {
	if err := d.e.UserMove(str); err != nil {
		logw.Warningf(ctx, "Illegal move: %v: %v", str, err)
		d.out <- fmt.Sprintf("Illegal move: %v", str)
	}
}

func (d *Driver) setOption(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: option <name> <value>")
	}
	name, value := strings.ToLower(args[0]), args[1]

	switch name {
	case "hash", "tt_size":
		mb, err := strconv.Atoi(value)
		if err != nil || mb < 0 {
			return fmt.Errorf("invalid hash size: %v", value)
		}
		return d.e.SetHash(uint(mb))

	case "use_san":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value: %v", value)
		}
		d.e.SetUseSAN(on)
		return nil

	case "chess960":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value: %v", value)
		}
		d.e.SetChess960(on)
		return nil

	default:
		return fmt.Errorf("unknown option: %v", name)
	}
}

func parseLevel(args []string) (timectl.TimeControl, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: usage: level <moves> <minutes> <increment>", timectl.ErrUnsupportedTimeControl)
	}
	moves, err1 := strconv.Atoi(args[0])
	minutes, err2 := strconv.Atoi(args[1])
	inc, err3 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, fmt.Errorf("%w: level %v", timectl.ErrUnsupportedTimeControl, args)
	}

	if inc > 0 {
		return timectl.Incremental{Base: time.Duration(minutes) * time.Minute, Increment: time.Duration(inc) * time.Second}, nil
	}
	if moves > 0 {
		return timectl.Conventional{Moves: moves, Time: time.Duration(minutes) * time.Minute}, nil
	}
	return nil, fmt.Errorf("%w: level %v", timectl.ErrUnsupportedTimeControl, args)
}

// looksLikeMove is a cheap syntactic filter so that typos get a not-found line
// rather than an illegal-move line.
func looksLikeMove(str string) bool {
	if str == "O-O" || str == "O-O-O" || str == "0-0" || str == "0-0-0" {
		return true
	}
	r := rune(str[0])
	return len(str) >= 2 && (('a' <= r && r <= 'h') || strings.ContainsRune("KQRBN", r))
}

func (d *Driver) printHelp() {
	for _, line := range []string{
		"display          show the board",
		"fen              show the position in XFEN",
		"setboard <fen>   set the position",
		"new              start a new game (engine plays black)",
		"go               engine plays the side to move",
		"usermove <move>  play a move (bare moves work too)",
		"force            engine plays neither side",
		"stop             stop the current search or perft",
		"perft <depth>    count leaf nodes",
		"depth <d>        set the search depth limit",
		"st <sec>         fixed time per move",
		"level <m> <t> <i> conventional or incremental time control",
		"options          show options",
		"option <n> <v>   set an option (hash, use_san, chess960)",
		"quit             exit",
	} {
		d.out <- line
	}
}

const (
	files      = "    a   b   c   d   e   f   g   h"
	horizontal = "  ---------------------------------"
	vertical   = " | "
)

func (d *Driver) printBoard() {
	b := d.e.Board()

	d.out <- ""
	d.out <- files
	d.out <- horizontal
	for r := board.NumRanks; r > board.ZeroRank; r-- {
		var sb strings.Builder
		sb.WriteString((r - 1).String())
		sb.WriteString(vertical)
		for f := board.ZeroFile; f < board.NumFiles; f++ {
			if p := b.Piece(board.NewSquare(f, r-1)); p != board.NoPiece {
				sb.WriteString(p.String())
			} else {
				sb.WriteString(" ")
			}
			sb.WriteString(vertical)
		}
		d.out <- sb.String()
		d.out <- horizontal
	}
	d.out <- files
	d.out <- ""
	d.out <- fmt.Sprintf("fen: %v", d.e.Position())
	d.out <- ""
}

// SearchStarted implements engine.Observer.
func (d *Driver) SearchStarted() {}

// IterationCompleted implements engine.Observer.
func (d *Driver) IterationCompleted(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
	d.out <- fmt.Sprintf("depth=%v score=%v nodes=%v time=%v pv=%v", depth, score, nodes, elapsed.Round(time.Millisecond), strings.Join(pv, " "))
}

// NewBestMove implements engine.Observer.
func (d *Driver) NewBestMove(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}

// SearchCompleted implements engine.Observer.
func (d *Driver) SearchCompleted(move string, pv []string, stats search.Stats) {
	if move == "" {
		d.out <- "no legal move"
		return
	}
	d.out <- fmt.Sprintf("move %v", move)
	d.out <- fmt.Sprintf("stats: %v", stats)
}

// PerftPartial implements engine.Observer.
func (d *Driver) PerftPartial(move string, count uint64) {
	d.out <- fmt.Sprintf("%v: %v", move, count)
}

// PerftCompleted implements engine.Observer.
func (d *Driver) PerftCompleted(total uint64, elapsed time.Duration) {
	nps := float64(total) / elapsed.Seconds()
	d.out <- fmt.Sprintf("perft: %v nodes in %.2fs (%.0f nodes/s)", total, elapsed.Seconds(), nps)
}
