package config

import (
	"path/filepath"
)

// Invocation describes one build call. Empty fields are absent: ScriptDir is
// empty for a bare file name and the absolute fields are empty when the path
// could not be made absolute.
type Invocation struct {
	ScriptDir     string
	ScriptPath    string
	AbsScriptDir  string
	AbsScriptPath string
	Defines       map[string]string
}

// FromPath derives the invocation config for the pipeline at path. The path
// need not exist.
func FromPath(path string) Invocation {
	inv := Invocation{ScriptPath: path}
	if dir := filepath.Dir(path); dir != "." || hasDotDir(path) {
		inv.ScriptDir = dir
	}
	if abs, err := filepath.Abs(path); err == nil {
		inv.AbsScriptPath = abs
		inv.AbsScriptDir = filepath.Dir(abs)
	}
	return inv
}

// hasDotDir reports whether path spells out "./" explicitly.
func hasDotDir(path string) bool {
	return len(path) > 2 && path[0] == '.' && (path[1] == '/' || path[1] == filepath.Separator)
}

// WithDefines returns a copy of inv whose defines are the union of the given
// maps, later maps winning.
func (inv Invocation) WithDefines(layers ...map[string]string) Invocation {
	merged := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	inv.Defines = merged
	return inv
}
