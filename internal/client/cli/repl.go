package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// executor runs one command line. App implements it.
type executor interface {
	exec(ctx context.Context, args []string) error
}

// runREPL reads commands until EOF, "exit" or "quit". A failing command is
// reported and the loop goes on.
func runREPL(ctx context.Context, a executor, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("gpo %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if err := a.exec(ctx, parts); err != nil {
			printlnFn("error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
