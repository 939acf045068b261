// Package module resolves and loads compiled HXSL modules (".hxslmod"
// binary files, §6's record format) by name from an ordered search path,
// generalizing the teacher's ModuleLoader (internal/module/module.go in
// sentra: a search-path slice plus an in-memory cache keyed by module
// name) from resolving scripting-language source files to resolving
// pre-compiled binary modules. There is no source-level or built-in
// module concept here — the frontend that would compile ".hxsl" source
// into one of these is out of scope.
package module

import (
	"os"
	"path/filepath"
	"sync"

	"hxsl/internal/layout"
	"hxsl/internal/modio"
)

// Loader finds and loads ".hxslmod" files by name, caching the decoded
// graph so a module referenced by several importers is parsed once.
type Loader struct {
	mu         sync.RWMutex
	cache      map[string]*layout.Module
	searchPath []string
}

// NewLoader returns a Loader with the default search path: the current
// directory, a local "./modules" directory, and HXSLC_MODULE_PATH's
// entries if that environment variable is set (the one environment
// variable this repository reads; see SPEC_FULL.md's Configuration
// section).
func NewLoader() *Loader {
	return &Loader{
		cache:      make(map[string]*layout.Module),
		searchPath: defaultSearchPath(),
	}
}

func defaultSearchPath() []string {
	paths := []string{".", filepath.Join(".", "modules")}
	if extra := os.Getenv("HXSLC_MODULE_PATH"); extra != "" {
		paths = append(paths, filepath.SplitList(extra)...)
	}
	return paths
}

// AddSearchPath appends dir to the end of the search order.
func (l *Loader) AddSearchPath(dir string) {
	l.searchPath = append(l.searchPath, dir)
}

// SearchPath returns the current search order.
func (l *Loader) SearchPath() []string {
	return l.searchPath
}

// Load resolves name to a ".hxslmod" file on the search path, decodes it,
// and caches the result under name. name may also be a direct path to a
// file (an absolute path, or any name with a ".hxslmod" suffix), bypassing
// the search path entirely.
func (l *Loader) Load(name string) (*layout.Module, error) {
	l.mu.RLock()
	if cached, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mod, _, err := modio.ReadModule(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[name] = mod
	l.mu.Unlock()
	return mod, nil
}

func (l *Loader) resolve(name string) (string, error) {
	if filepath.IsAbs(name) || filepath.Ext(name) == ".hxslmod" {
		if fileExists(name) {
			return name, nil
		}
		return "", os.ErrNotExist
	}
	for _, dir := range l.searchPath {
		candidate := filepath.Join(dir, name+".hxslmod")
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", os.ErrNotExist
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ClearCache drops every cached module, forcing the next Load to re-read
// from disk.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*layout.Module)
}
