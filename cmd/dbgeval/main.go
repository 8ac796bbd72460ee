// dbgeval evaluates debugger watch expressions against a stopped target.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"

	"github.com/chazu/dbgeval/manifest"
	"github.com/chazu/dbgeval/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("dbgeval")

func main() {
	configPath := flag.String("config", "", "Configuration file (default: nearest dbgeval.toml)")
	fixturePath := flag.String("fixture", "", "Target fixture (.toml or .yaml)")
	dbPath := flag.String("db", "", "SQLite debug-info database")
	archName := flag.String("arch", "", "Target architecture: x64, x86 or none")
	disasm := flag.Bool("disasm", false, "Print a bytecode listing for each expression")
	emitPath := flag.String("emit", "", "Compile the expression to a CBOR program file")
	runPath := flag.String("run", "", "Verify and run a CBOR program file")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	serveMode := flag.Bool("serve", false, "Serve evaluation over Connect and gRPC")
	lspMode := flag.Bool("lsp", false, "Run a language server for watch files on stdio")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dbgeval [options] [expressions...]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates each expression against the configured target and prints\n")
		fmt.Fprintf(os.Stderr, "\"<value> (<type>)\". Diagnostics go to stderr.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -fixture stop.toml 'pt->x + 1'\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -fixture stop.toml -disasm 'i * 2'\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -fixture stop.toml -emit watch.cbor 'g_count'\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -fixture stop.toml -run watch.cbor\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -fixture stop.toml -i\n")
		fmt.Fprintf(os.Stderr, "  dbgeval -serve            # addresses from dbgeval.toml\n")
	}
	flag.Parse()

	m, err := loadManifest(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, m.LogPath())

	s, err := openSession(m, sources{fixture: *fixturePath, database: *dbPath, arch: *archName})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s.disasm = *disasm
	log.Infof("session: %s", s.describe())

	os.Exit(run(s, flag.Args(), options{
		emit:        *emitPath,
		run:         *runPath,
		interactive: *interactive,
		serve:       *serveMode,
		lsp:         *lspMode,
	}, os.Stdin, os.Stdout, os.Stderr))
}

// loadManifest reads path, or the nearest dbgeval.toml, or the defaults.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil || m != nil {
		return m, err
	}
	return manifest.Default(), nil
}

type options struct {
	emit        string
	run         string
	interactive bool
	serve       bool
	lsp         bool
}

// run executes the selected mode and returns the exit code.
func run(s *session, exprs []string, opts options, in io.Reader, out, errOut io.Writer) int {
	switch {
	case opts.lsp:
		pool := server.NewPool(s.evaluator, s.manifest.Server.Workers)
		if err := server.NewLSP(pool, s.scope, s.target).Run(); err != nil {
			fmt.Fprintf(errOut, "LSP error: %v\n", err)
			return 1
		}
		return 0

	case opts.serve:
		if err := serve(s); err != nil {
			fmt.Fprintf(errOut, "Server error: %v\n", err)
			return 1
		}
		return 0

	case opts.emit != "":
		if len(exprs) != 1 {
			fmt.Fprintf(errOut, "Error: -emit takes exactly one expression\n")
			return 2
		}
		if err := s.emitProgram(opts.emit, exprs[0]); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return 1
		}
		return 0

	case opts.run != "":
		if err := s.runProgram(out, opts.run); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	code := 0
	for _, expr := range exprs {
		if !s.evalAndPrint(out, errOut, expr) {
			code = 1
		}
	}

	if opts.interactive || len(exprs) == 0 {
		s.runREPL(in, out, errOut, isTerminal())
	}
	return code
}

// serve runs Connect and gRPC until interrupted.
func serve(s *session) error {
	cfg := s.manifest.Server
	srv := server.New(s.evaluator, s.scope, s.target, server.WithWorkers(cfg.Workers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errs := make(chan error, 2)
	go func() { errs <- srv.ListenAndServe(cfg.Addr) }()
	go func() { errs <- srv.ServeGRPC(cfg.GRPCAddr) }()

	var err error
	select {
	case err = <-errs:
	case <-ctx.Done():
		log.Notice("shutting down")
	}
	srv.Stop()
	return err
}
