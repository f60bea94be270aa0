// perft is a movegen debugging tool. See: https://www.chessprogramming.org/Perft_Results.
package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/board/fen"
	"github.com/ferzchess/ferz/pkg/perft"
	"github.com/seekerror/logw"
)

var (
	depth    = flag.Int("depth", 4, "Search depth")
	position = flag.String("fen", "", "Start position (defaults to standard)")
	divide   = flag.Bool("divide", false, "Print counts per initial move")
	workers  = flag.Int("workers", 0, "Worker count (defaults to CPU count)")
)

func main() {
	ctx := context.Background()
	flag.Parse()

	if *position == "" {
		*position = fen.Initial
	}

	b, _, err := fen.Decode(*position)
	if err != nil {
		logw.Exitf(ctx, "Invalid fen '%v': %v", *position, err)
	}

	for i := 1; i <= *depth; i++ {
		obs := &printer{fen: *position, depth: i, divide: *divide && i == *depth, done: make(chan struct{})}
		perft.New(b, i, *workers).RunParallel(ctx, obs)
		<-obs.done
	}
}

type printer struct {
	fen    string
	depth  int
	divide bool
	done   chan struct{}
	mu     sync.Mutex
}

func (p *printer) PartialResult(move board.Move, count uint64) {
	if p.divide {
		p.mu.Lock()
		println(fmt.Sprintf("%v: %v", move, count))
		p.mu.Unlock()
	}
}

func (p *printer) Result(total uint64, elapsed time.Duration) {
	println(fmt.Sprintf("perft,%v,%v,%v,%v", p.fen, p.depth, total, elapsed.Microseconds()))
	close(p.done)
}
