package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ferzchess/ferz/pkg/engine"
	"github.com/ferzchess/ferz/pkg/engine/console"
	"github.com/ferzchess/ferz/pkg/engine/uci"
	"github.com/seekerror/logw"
)

var (
	hash  = flag.Uint("hash", 64, "Transposition table size in MB (zero disables)")
	depth = flag.Int("depth", 64, "Maximum search depth")
	san   = flag.Bool("san", true, "Render moves in SAN on the console")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: ferz [options]

FERZ is a bitboard chess engine speaking UCI and a simple console protocol.
Send "uci" as the first line for UCI mode; anything else selects the console.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	e := engine.New(ctx, "ferz", "ferzchess", engine.Options{
		Hash:     *hash,
		MaxDepth: *depth,
	})

	in := engine.ReadStdinLines(ctx)
	first, ok := <-in
	if !ok {
		logw.Exitf(ctx, "No input")
	}

	if first == uci.ProtocolName {
		driver, out := uci.NewDriver(ctx, e, in)
		go engine.WriteStdoutLines(ctx, out)

		<-driver.Closed()
		return
	}

	// Anything else is the console protocol; the first line was already a command.
	e.SetUseSAN(*san)

	merged := make(chan string, 1)
	go func() {
		defer close(merged)
		if first != console.ProtocolName {
			merged <- first
		}
		for line := range in {
			merged <- line
		}
	}()

	driver, out := console.NewDriver(ctx, e, merged)
	go engine.WriteStdoutLines(ctx, out)

	<-driver.Closed()
}
