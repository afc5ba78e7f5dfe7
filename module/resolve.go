// Package module implements Feral's module resolution and loading: the
// mod_exists-style search rules, script-unit sharing via the source
// registry, and native-module loading through Go's plugin package
// standing in for the dynamic linker.
package module

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rnshah9/feral/ferrors"
)

// ScriptExt/CompiledExt/NativePrefix are the file-extension and naming
// conventions module resolution uses: `.fer` source, `.cfer` compiled,
// `libferal`-prefixed shared objects for native modules.
const (
	ScriptExt    = ".fer"
	CompiledExt  = ".cfer"
	NativePrefix = "libferal"
)

// nativeExt is the platform shared-library extension. Feral only targets
// platforms Go's plugin package supports (linux, freebsd); darwin's usual
// .dylib naming is moot since Go plugin itself is unsupported there:
// native_unsupported.go makes native loading fail with a LoadError on
// those platforms.
func nativeExt() string {
	return ".so"
}

// Resolve implements module-spec resolution: given the import spec as
// written in source and the directory of the top source unit (for
// relative imports), return the canonical absolute path and its
// directory, or a LoadError if nothing on any search path exists.
func Resolve(spec string, topDir string, compiled bool, searchPaths []string) (absPath, dir string, err error) {
	ext := ScriptExt
	if compiled {
		ext = CompiledExt
	}

	var candidate string
	switch {
	case strings.HasPrefix(spec, "~/"):
		home := os.Getenv("HOME")
		candidate = filepath.Join(home, strings.TrimPrefix(spec, "~/"))
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "."):
		if topDir == "" {
			return "", "", ferrors.New(ferrors.LoadError, 0, 0, "relative import %q with empty source stack", spec)
		}
		candidate = filepath.Join(topDir, spec)
	case strings.HasPrefix(spec, "/"):
		candidate = spec
	default:
		for _, p := range searchPaths {
			c := filepath.Join(p, spec)
			if probe(c, ext) != "" {
				candidate = c
				break
			}
		}
		if candidate == "" {
			return "", "", ferrors.New(ferrors.LoadError, 0, 0, "module %q not found on any search path", spec)
		}
	}

	hit := probe(candidate, ext)
	if hit == "" {
		return "", "", ferrors.New(ferrors.LoadError, 0, 0, "module %q not found at %s", spec, candidate)
	}
	abs, err := filepath.Abs(hit)
	if err != nil {
		return "", "", ferrors.Wrap(ferrors.LoadError, 0, 0, err, "resolving %q", spec)
	}
	return abs, filepath.Dir(abs), nil
}

// probe returns path or path+ext, whichever exists, or "".
func probe(path, ext string) string {
	if fileExists(path) {
		return path
	}
	if withExt := path + ext; fileExists(withExt) {
		return withExt
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NativePath turns a leaf module name into the resolved shared-object
// path within the given search directory (prefixed with `libferal` and
// given the platform shared-library extension).
func NativePath(dir, leaf string) string {
	return filepath.Join(dir, NativePrefix+leaf+nativeExt())
}

// SearchPaths builds the ordered list of directories module resolution
// consults: `;`-separated FERAL_PATHS prefixes first (each contributing
// `<p>/include/feral` for scripts or `<p>/lib/feral` for native
// modules), then any config-supplied extra prefixes in the same shape,
// then the installation prefix rooted at selfBase.
func SearchPaths(selfBase string, script bool, extra ...string) []string {
	leaf := "lib/feral"
	if script {
		leaf = "include/feral"
	}
	var out []string
	if raw := os.Getenv("FERAL_PATHS"); raw != "" {
		for _, p := range strings.Split(raw, ";") {
			if p == "" {
				continue
			}
			out = append(out, filepath.Join(p, leaf))
		}
	}
	for _, p := range extra {
		if p == "" {
			continue
		}
		out = append(out, filepath.Join(p, leaf))
	}
	out = append(out, filepath.Join(selfBase, leaf))
	return out
}
