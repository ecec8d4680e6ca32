package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/vm"
)

// replCellWindow is how many leading tape cells :cells shows.
const replCellWindow = 16

func handleReplCommand(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	wrap := fs.Bool("wrap", false, "Start with pointer wraparound enabled")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfc repl [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	rl, err := readline.New(">> ")
	if err != nil {
		fail(err)
	}
	defer rl.Close()

	fmt.Printf("bfc %s repl (type :help for commands)\n", version)

	settings := compiler.Settings{Wrap: *wrap}
	var lastCells [replCellWindow]byte
	lastDP := 0

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			break
		} else if err != nil {
			fmt.Println(err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if strings.HasPrefix(line, ":") {
			if quit := replCommand(line, &settings, lastCells, lastDP); quit {
				break
			}
			continue
		}

		prog, err := compiler.Parse(line)
		if err != nil {
			reportSourceError(line, err)
			continue
		}

		// Each line is a full program on a fresh tape. Input is empty;
		// programs that read get an exhausted-input error.
		var out bytes.Buffer
		interp := vm.New(prog, settings, strings.NewReader(""), &out)
		runErr := interp.Run()

		if out.Len() > 0 {
			fmt.Print(out.String())
			if !strings.HasSuffix(out.String(), "\n") {
				fmt.Println()
			}
		}

		copy(lastCells[:], interp.Tape()[:replCellWindow])
		lastDP = interp.DP()

		if runErr != nil {
			reportSourceError(line, runErr)
		}
	}
}

// replCommand handles a ':' meta-command. Returns true when the session
// should end.
func replCommand(cmd string, settings *compiler.Settings, cells [replCellWindow]byte, dp int) bool {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Println("Commands:")
		fmt.Println("  :help, :h, :?   Show this help")
		fmt.Println("  :wrap           Toggle pointer wraparound")
		fmt.Println("  :cells          Show the first tape cells of the last run")
		fmt.Println("  :quit, :q       Exit (also: exit, quit)")
		fmt.Println()
		fmt.Println("Anything else runs as a program on a fresh tape with empty input.")
	case ":wrap":
		settings.Wrap = !settings.Wrap
		if settings.Wrap {
			fmt.Println("Pointer wraparound enabled")
		} else {
			fmt.Println("Pointer wraparound disabled")
		}
	case ":cells":
		fmt.Printf("cells %v\n", cells)
		fmt.Printf("dp    %d\n", dp)
	case ":quit", ":q":
		return true
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}
