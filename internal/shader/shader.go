// Package shader wraps the naga WGSL front end as an opaque parse and
// validate service.
package shader

import (
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"
)

// Module is a successfully parsed and lowered WGSL module.
type Module struct {
	Source string
	AST    *wgsl.Module
	IR     *ir.Module
}

// Error is a parse or validation failure. Diagnostic is the rendered,
// human-readable report.
type Error struct {
	Diagnostic string
	Err        error
}

func (e *Error) Error() string { return e.Diagnostic }
func (e *Error) Unwrap() error { return e.Err }

// Parse tokenizes, parses and lowers src.
func Parse(src string) (*Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, &Error{Diagnostic: parseDiagnostic(src, err), Err: err}
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, &Error{Diagnostic: parseDiagnostic(src, err), Err: err}
	}
	return &Module{Source: src, AST: ast, IR: module}, nil
}

// parseDiagnostic renders err with the offending source line when a position
// is known.
func parseDiagnostic(src string, err error) string {
	var list *wgsl.SourceErrors
	if errors.As(err, &list) && list.HasErrors() {
		return list.FormatAll()
	}
	var one *wgsl.SourceError
	if errors.As(err, &one) {
		return one.FormatWithContext()
	}
	var pe *wgsl.ParseError
	if errors.As(err, &pe) && pe.Token.Line > 0 {
		pos := wgsl.Position{Line: pe.Token.Line, Column: pe.Token.Column}
		return wgsl.NewSourceError(pe.Message, wgsl.Span{Start: pos, End: pos}, src).FormatWithContext()
	}
	return err.Error()
}
