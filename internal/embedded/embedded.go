// Package embedded carries the script bundle compiled into the binary.
package embedded

import (
	_ "embed"
)

//go:generate go run ../../cmd/loombundle -o bundle.star ./scripts

// Bundle is the generated artifact holding every script under scripts/.
//
//go:embed bundle.star
var Bundle string

// ScriptsDir is the bundling root, relative to this package.
const ScriptsDir = "scripts"
