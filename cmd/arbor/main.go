package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"arbor/internal/ast"
	"arbor/internal/astio"
	"arbor/internal/config"
	"arbor/internal/diag"
	"arbor/internal/object"
	"arbor/internal/vm"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("arbor")

const usage = `usage: arbor <command> [flags] [file]

commands:
  run    evaluate a tree document and print the result
  dis    print the bytecode of a tree document
  check  decode a tree document and report problems
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	cfg    *config.Config
	file   string
	color  bool
	format string
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "run", "dis", "check":
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n%s", cmd, usage)
		return 2
	}

	o, err := parseOptions(cmd, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "%s error: %v\n", cmd, err)
		return 2
	}

	data, err := os.ReadFile(o.file)
	if err != nil {
		fmt.Fprintf(stderr, "read error: %v\n", err)
		return 1
	}
	node, err := astio.Decode(o.file, data)
	if err != nil {
		report(stderr, err, o)
		return 1
	}

	switch cmd {
	case "check":
		fmt.Fprintf(stdout, "%s: ok\n", o.file)
		return 0
	case "dis":
		return disassemble(node, o, stdout, stderr)
	}
	return evaluate(node, o, stdout, stderr)
}

// parseOptions layers command-line flags over the configuration file.
func parseOptions(cmd string, args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to arbor.toml (default: search upward from the working directory)")
	maxSteps := fs.Int64("max-steps", 0, "instruction budget per run, 0 for unlimited")
	maxRecursion := fs.Int("max-recursion", 0, "call depth limit")
	optimize := fs.Bool("O", false, "enable the peephole optimizer")
	format := fs.String("format", "", "diagnostic format: text or lsp")
	color := fs.String("color", "", "colour diagnostics: auto, always or never")
	verbosity := fs.Int("v", 0, "log verbosity")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			cwd = "."
		}
		cfg, err = config.FindAndLoad(cwd)
	}
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-steps":
			cfg.Run.MaxSteps = *maxSteps
		case "max-recursion":
			cfg.Run.MaxRecursion = *maxRecursion
		case "O":
			cfg.Run.Optimize = *optimize
		case "format":
			cfg.Output.Format = *format
		case "color":
			cfg.Output.Color = *color
		case "v":
			cfg.Log.Verbosity = *verbosity
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Log.File != "" {
		commonlog.Configure(cfg.Log.Verbosity, &cfg.Log.File)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}

	o := &options{cfg: cfg, format: cfg.Output.Format}
	switch fs.NArg() {
	case 0:
		o.file = cfg.EntryPath()
		if o.file == "" {
			return nil, errors.New("no file given and no run.entry configured")
		}
	case 1:
		o.file = fs.Arg(0)
	default:
		return nil, errors.Errorf("expected one file, got %d", fs.NArg())
	}
	o.color = cfg.UseColor(isTerminal(stderr))
	return o, nil
}

func newVM(cfg *config.Config) *vm.VM {
	m := vm.New(nil)
	m.SetMaxSteps(cfg.Run.MaxSteps)
	if cfg.Run.MaxRecursion > 0 {
		m.SetMaxRecursion(cfg.Run.MaxRecursion)
	}
	m.SetOptimize(cfg.Run.Optimize)
	return m
}

func evaluate(node ast.Node, o *options, stdout, stderr io.Writer) int {
	m := newVM(o.cfg)
	v, err := m.Run(object.NewFragment(node))
	if err != nil {
		log.Errorf("%s: %s", o.file, err)
		report(stderr, err, o)
		return 1
	}
	fmt.Fprintln(stdout, m.Inspect(v))
	return 0
}

func disassemble(node ast.Node, o *options, stdout, stderr io.Writer) int {
	m := newVM(o.cfg)
	p, err := m.Compile(object.NewFragment(node), m.Globals())
	if err != nil {
		report(stderr, err, o)
		return 1
	}
	fmt.Fprint(stdout, "== instructions ==\n")
	fmt.Fprint(stdout, p.String())
	if len(p.Constants) > 0 {
		fmt.Fprint(stdout, "== constants ==\n")
		for i, c := range p.Constants {
			fmt.Fprintf(stdout, "%04d %s\n", i, m.Inspect(c))
		}
	}
	return 0
}

func asDiagnostic(err error) *diag.Diagnostic {
	var d *diag.Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return diag.New(ast.Intrinsic, "%s", err)
}

func report(w io.Writer, err error, o *options) {
	d := asDiagnostic(err)
	if o.format == "lsp" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(diag.ToLspDiagnostics([]*diag.Diagnostic{d})); err != nil {
			fmt.Fprintf(w, "encode error: %v\n", err)
		}
		return
	}
	text := d.Format()
	if !o.color {
		fmt.Fprint(w, text)
		return
	}
	out := termenv.NewOutput(w, termenv.WithProfile(termenv.ANSI))
	head, rest, _ := strings.Cut(text, "\n")
	fmt.Fprintln(w, out.String(head).Foreground(termenv.ANSIRed).Bold())
	fmt.Fprint(w, rest)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
