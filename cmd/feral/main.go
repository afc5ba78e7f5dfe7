// Command feral is the reference driver binary: it wires VM
// construction, the module loader, and exit-code reporting around three
// entry points - running a file, running code from the command line
// (`-e`), and an interactive shell (`-a`) - built on urfave/cli/v3.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/rnshah9/feral/config"
	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/module"
	"github.com/rnshah9/feral/vm"
)

func main() {
	app := &cli.Command{
		Name:  "feral",
		Usage: "Feral script runner",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "a",
				Aliases: []string{"interactive"},
				Usage:   "Run as an interactive shell",
			},
			&cli.StringFlag{
				Name:    "e",
				Aliases: []string{"code"},
				Usage:   "Run <code> directly instead of a file",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a feral.yml config file",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "feral: %v\n", err)
		os.Exit(ferrors.ExitCode(err))
	}
}

func run(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	selfBin, err := os.Executable()
	if err != nil {
		selfBin = os.Args[0]
	}
	selfBase := filepath.Dir(filepath.Dir(selfBin))

	args := cmd.Args().Slice()
	vmi := vm.New(selfBin, selfBase, args)
	if cfg.ExecStackMax > 0 {
		vmi.ExecStackMax = cfg.ExecStackMax
	}
	// A script that called exit(n) ends the process with code n once the
	// VM has been torn down.
	defer func() {
		if err == nil && vmi.ExitCalled {
			os.Exit(vmi.ExitCode)
		}
	}()
	defer vmi.Teardown()

	loader := module.NewLoader(selfBase, cfg.Compiled, stubCompile)
	loader.ExtraSearchPaths = cfg.SearchPaths
	vmi.SetLoader(loader)

	switch {
	case cmd.Bool("a"):
		return runInteractiveShell(vmi, loader)
	case cmd.String("e") != "":
		return runCode(vmi, loader, cmd.String("e"))
	case args != nil && len(args) > 0:
		return runFile(vmi, loader, args[0])
	default:
		code, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return runCode(vmi, loader, string(code))
	}
}

// stubCompile is the driver's CompileFn, the Go form of
// `set_src_load_fn`. The lexer/parser/bytecode emitter are an explicit
// non-goal of this core: a real distribution links in an external front
// end here the same way a full compiler package would be wired in.
func stubCompile(path, dir, code string) (*module.Compiled, error) {
	return nil, ferrors.New(ferrors.ParseError, 0, 0,
		"no Feral source compiler is linked into this build; supply pre-compiled bytecode via the embedding API (path %s)", path)
}

func runFile(vmi *vm.VM, loader *module.Loader, path string) error {
	u, err := loader.LoadMain(vmi, path)
	if err != nil {
		return err
	}
	if err := vmi.LoadCoreMods(u); err != nil {
		return err
	}
	vmi.PushSrc(u)
	defer vmi.PopSrc()
	_, err = vmi.Exec(0)
	return err
}

func runCode(vmi *vm.VM, loader *module.Loader, code string) error {
	u, err := loader.LoadInline(vmi, code)
	if err != nil {
		return err
	}
	if err := vmi.LoadCoreMods(u); err != nil {
		return err
	}
	vmi.PushSrc(u)
	defer vmi.PopSrc()
	_, err = vmi.Exec(0)
	return err
}

// runInteractiveShell implements the driver's interactive loop: read one
// logical unit of input, compile and execute it against the same VM so
// bindings persist across lines, print errors without aborting the
// session. Uses a readline-backed prompt with history/editing when
// stdin is a real terminal (chzyer/readline and mattn/go-isatty back
// the actual shell), falling back to a plain bufio prompt otherwise
// (piped input, redirected stdin).
func runInteractiveShell(vmi *vm.VM, loader *module.Loader) error {
	fmt.Println("feral interactive shell. Ctrl-D to exit.")

	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return runReadlineShell(vmi, loader)
	}
	return runPlainShell(vmi, loader)
}

func runReadlineShell(vmi *vm.VM, loader *module.Loader) error {
	rl, err := readline.New("feral> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "exit" || line == "quit" {
			if line == "exit" || line == "quit" {
				return nil
			}
			continue
		}
		evalShellLine(vmi, loader, line)
	}
}

func runPlainShell(vmi *vm.VM, loader *module.Loader) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("feral> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		evalShellLine(vmi, loader, line)
	}
}

func evalShellLine(vmi *vm.VM, loader *module.Loader, line string) {
	u, err := loader.LoadInline(vmi, line)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if err := vmi.LoadCoreMods(u); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	vmi.PushSrc(u)
	defer vmi.PopSrc()
	if _, err := vmi.Exec(0); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
