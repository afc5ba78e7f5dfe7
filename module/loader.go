package module

import (
	"os"
	"path/filepath"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vm"
)

// Compiled is what a CompileFn returns: the bytecode and tables a source
// unit needs. Feral's lexer/parser/codegen are out of scope here; a real
// driver supplies a CompileFn backed by an external front end, and tests
// supply one that hands back a pre-built instruction stream, hand
// constructing opcodes.Instruction values directly rather than
// round-tripping through a parser.
type Compiled struct {
	Instructions []opcodes.Instruction
	Constants    []*values.Value
	FnTemplates  []*values.Fn
}

// CompileFn is the host-supplied load function: given a resolved path,
// its directory, and the raw source text, it returns compiled bytecode
// or an error.
type CompileFn func(path, dir, code string) (*Compiled, error)

// Loader is package module's concrete implementation of vm.Loader, wired
// into a VM once via vm.SetLoader before any script runs.
type Loader struct {
	SelfBase string
	Compiled bool

	// Compile compiles script source text loaded from disk. Nil means
	// "re-share only": imports of units not already in the registry fail
	// with a LoadError, which is how tests exercise IMPORT against
	// hand-registered units without a real compiler.
	Compile CompileFn

	// ReadFile reads a resolved script path's source text; defaults to
	// os.ReadFile via NewLoader.
	ReadFile func(path string) (string, error)

	// NativeDir is the directory native .so files are searched for,
	// overriding SearchPaths(SelfBase, false) when non-empty (tests set
	// this to a temp dir).
	NativeDir string

	// ExtraSearchPaths supplements both script and native search paths,
	// consulted after FERAL_PATHS and before the installation prefix
	// (config.Config.SearchPaths is threaded in here by the driver).
	ExtraSearchPaths []string
}

var _ vm.Loader = (*Loader)(nil)

// NewLoader builds a Loader ready for script imports (compile function
// supplied by the host) with disk reads wired to os.ReadFile.
func NewLoader(selfBase string, compiled bool, compile CompileFn) *Loader {
	return &Loader{
		SelfBase: selfBase,
		Compiled: compiled,
		Compile:  compile,
		ReadFile: func(path string) (string, error) {
			b, err := os.ReadFile(path)
			return string(b), err
		},
	}
}

// Load implements vm.Loader's IMPORT handling: try script resolution
// first (matching a `.fer`/`.cfer` file on the script search path), then
// native (a `libferal<name>.so` on the native search path).
func (l *Loader) Load(vmi *vm.VM, name string, srcID, idx uint32) (*values.Value, error) {
	topDir := ""
	if u := vmi.CurrentSrc(); u != nil {
		topDir = u.Dir
	}

	scriptErr := l.tryScript(vmi, name, topDir, srcID, idx)
	if scriptErr.err == nil {
		return scriptErr.val, nil
	}

	nativeVal, nativeErr := l.loadNative(vmi, name, srcID, idx)
	if nativeErr == nil {
		return nativeVal, nil
	}

	return nil, scriptErr.err
}

type loadResult struct {
	val *values.Value
	err error
}

func (l *Loader) tryScript(vmi *vm.VM, name, topDir string, srcID, idx uint32) loadResult {
	paths := SearchPaths(l.SelfBase, true, l.ExtraSearchPaths...)
	abs, dir, err := Resolve(name, topDir, l.Compiled, paths)
	if err != nil {
		return loadResult{nil, err}
	}

	if u, ok := vmi.Registry.Lookup(abs); ok {
		return loadResult{unitValue(u), nil}
	}

	if l.Compile == nil {
		return loadResult{nil, ferrors.New(ferrors.LoadError, srcID, idx, "no compiler configured, cannot load %s", abs)}
	}

	code := ""
	if l.ReadFile != nil {
		code, err = l.ReadFile(abs)
		if err != nil {
			return loadResult{nil, ferrors.Wrap(ferrors.LoadError, srcID, idx, err, "reading %s", abs)}
		}
	}

	u := vmi.Registry.Register(abs, dir, code)

	compiled, cerr := l.Compile(abs, dir, code)
	if cerr != nil {
		return loadResult{nil, ferrors.Wrap(ferrors.ParseError, srcID, idx, cerr, "compiling %s", abs)}
	}
	u.Instructions = compiled.Instructions
	u.Constants = compiled.Constants
	u.FnTemplates = compiled.FnTemplates

	vmi.PushSrc(u)
	if _, execErr := vmi.Exec(0); execErr != nil {
		vmi.PopSrc()
		return loadResult{nil, execErr}
	}
	vmi.PopSrc()

	return loadResult{unitValue(u), nil}
}

// LoadMain compiles the driver's entry script without running it; the
// caller pushes it on the source stack and calls Exec itself, keeping
// "add a source" and "execute it" as distinct driver operations.
func (l *Loader) LoadMain(vmi *vm.VM, path string) (*source.Unit, error) {
	abs := path
	if l.ReadFile == nil || l.Compile == nil {
		return nil, ferrors.New(ferrors.LoadError, 0, 0, "loader not fully configured to load %s", path)
	}
	code, err := l.ReadFile(abs)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, 0, 0, err, "reading %s", abs)
	}
	dir := filepath.Dir(abs)
	u := vmi.Registry.Register(abs, dir, code)
	compiled, cerr := l.Compile(abs, dir, code)
	if cerr != nil {
		return nil, ferrors.Wrap(ferrors.ParseError, 0, 0, cerr, "compiling %s", abs)
	}
	u.Instructions = compiled.Instructions
	u.Constants = compiled.Constants
	u.FnTemplates = compiled.FnTemplates
	return u, nil
}

// LoadInline compiles code supplied directly on the command line (the
// `-e`/`-r` style entry point other drivers in the pack expose),
// registering it under a synthetic path so imports resolved relative to
// it fall back to the process's working directory.
func (l *Loader) LoadInline(vmi *vm.VM, code string) (*source.Unit, error) {
	if l.Compile == nil {
		return nil, ferrors.New(ferrors.LoadError, 0, 0, "no compiler configured for inline code")
	}
	dir, _ := os.Getwd()
	path := dir + "/<inline>"
	u := vmi.Registry.Register(path, dir, code)
	compiled, cerr := l.Compile(path, dir, code)
	if cerr != nil {
		return nil, ferrors.Wrap(ferrors.ParseError, 0, 0, cerr, "compiling inline code")
	}
	u.Instructions = compiled.Instructions
	u.Constants = compiled.Constants
	u.FnTemplates = compiled.FnTemplates
	return u, nil
}

// srcTypeID identifies the `src` value type returned by IMPORT, distinct
// from every struct/native type scripts or other native modules declare.
var srcTypeID = values.NewTypeID()

// unitValue wraps a source unit as the `src` value an `import`
// expression binds, so `import "m"; m.g` resolves through the unit's own
// attribute-based dispatch onto its module-level vars frame.
func unitValue(u *source.Unit) *values.Value {
	v := values.New(values.VNative, srcTypeID, u, values.Provenance{SrcID: u.ID})
	v.AttrBased = true
	return v
}
