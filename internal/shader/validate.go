package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/maxmcd/shaderloom/internal/logger"
)

// ValidationFlags selects which classes of validation errors are reported.
// The bit values match naga's.
type ValidationFlags uint8

const (
	ValidateExpressions ValidationFlags = 1 << iota
	ValidateBlocks
	ValidateControlFlowUniformity
	ValidateStructLayouts
	ValidateConstants
	ValidateBindings

	ValidateAll = ValidateExpressions | ValidateBlocks | ValidateControlFlowUniformity |
		ValidateStructLayouts | ValidateConstants | ValidateBindings
)

// FlagsFromBits keeps the known bits of v and drops the rest.
func FlagsFromBits(v uint64) ValidationFlags {
	return ValidationFlags(v & uint64(ValidateAll))
}

func (f ValidationFlags) String() string {
	names := []string{"expressions", "blocks", "control_flow_uniformity", "struct_layouts", "constants", "bindings"}
	var set []string
	for i, name := range names {
		if f&(1<<i) != 0 {
			set = append(set, name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}

// Outcome is the result of ParseAndValidate. A parse failure leaves Module
// nil. Diagnostic is empty only when parsing and validation both passed.
type Outcome struct {
	Module     *Module
	Diagnostic string
}

// ParseAndValidate parses src, then validates it, reporting only the error
// classes selected by flags. Errors that belong to no class are always
// reported.
func ParseAndValidate(src string, flags ValidationFlags) Outcome {
	module, err := Parse(src)
	if err != nil {
		return Outcome{Diagnostic: err.(*Error).Diagnostic}
	}
	verrs, err := naga.Validate(module.IR)
	if err != nil {
		return Outcome{Module: module, Diagnostic: err.Error()}
	}
	var reported []ir.ValidationError
	for _, ve := range verrs {
		class := classify(ve)
		if class == 0 || flags&class != 0 {
			reported = append(reported, ve)
		}
	}
	logger.Debugw("validated shader", "flags", flags, "errors", len(verrs), "reported", len(reported))
	return Outcome{Module: module, Diagnostic: validationDiagnostic(reported)}
}

// classify maps a validation error to the flag that governs it, or 0 when no
// flag does.
func classify(ve ir.ValidationError) ValidationFlags {
	msg := ve.Message
	switch {
	case ve.Expression != nil:
		return ValidateExpressions
	case ve.Statement >= 0:
		return ValidateBlocks
	// The message cases below match naga's ir/validate.go wording and must be
	// rechecked when naga is bumped.
	// `global variable %q: duplicate binding @group(%d) @binding(%d)`
	case strings.Contains(msg, "binding"):
		return ValidateBindings
	// `constant %d (%s): type %d does not exist`,
	// `global variable %q: init constant %d does not exist`
	case strings.HasPrefix(msg, "constant ") || strings.Contains(msg, "init constant"):
		return ValidateConstants
	// `type %d: ...` layout checks on scalars, vectors, matrices, arrays and structs
	case strings.HasPrefix(msg, "type "):
		return ValidateStructLayouts
	case ve.Function != "":
		return ValidateBlocks
	}
	return 0
}

func validationDiagnostic(verrs []ir.ValidationError) string {
	if len(verrs) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "shader validation failed with %d error(s):", len(verrs))
	for _, ve := range verrs {
		fmt.Fprintf(&sb, "\n  %s", ve.Error())
	}
	return sb.String()
}
