package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// runREPL reads one expression per line. The banner and prompt are only
// printed when prompt is set, so piped input yields bare results.
func (s *session) runREPL(in io.Reader, out, errOut io.Writer, prompt bool) {
	if prompt {
		fmt.Fprintf(out, "dbgeval REPL, %s (type 'exit' to quit, ':help' for commands)\n\n", s.describe())
	}

	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, ">> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case strings.HasPrefix(line, ":"):
			s.handleREPLCommand(out, line)
			continue
		}
		s.evalAndPrint(out, errOut, line)
	}
	if prompt {
		fmt.Fprintln(out)
	}
}

// handleREPLCommand handles REPL meta-commands
func (s *session) handleREPLCommand(out io.Writer, cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(out, "  :info             Show the current stop location")
		fmt.Fprintln(out, "  :names [prefix]   List symbols and types")
		fmt.Fprintln(out, "  :disasm           Toggle bytecode listings")
		fmt.Fprintln(out, "  :stats            Show compile cache statistics")
		fmt.Fprintln(out, "  exit, quit        Exit REPL")
	case ":info":
		fmt.Fprintln(out, s.describe())
	case ":names":
		for _, n := range s.scope.Names() {
			if strings.HasPrefix(n, arg) {
				fmt.Fprintln(out, n)
			}
		}
	case ":disasm":
		s.disasm = !s.disasm
		fmt.Fprintf(out, "Listings %s\n", onOff(s.disasm))
	case ":stats":
		hits, misses := s.evaluator.Stats()
		fmt.Fprintf(out, "%d hits, %d misses\n", hits, misses)
	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func (s *session) describe() string {
	proc := s.scope.ProcedureName()
	if proc == "" {
		proc = "<no procedure>"
	}
	return fmt.Sprintf("%s in %s, %d regions", s.scope.Arch, proc, len(s.target.Regions))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
