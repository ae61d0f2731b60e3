package starutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type ErrUnhashable string

func (err ErrUnhashable) Error() string {
	return fmt.Sprintf("%s is unhashable", string(err))
}

// SourceFunc returns the source of an embedded module. Filenames it does not
// know are read from disk.
type SourceFunc func(filename string) (string, bool)

// AnnotateError renders err for a terminal. Starlark resolve, syntax and
// evaluation errors get the offending source lines with a caret.
func AnnotateError(err error, sources SourceFunc) string {
	sb := new(strings.Builder)
	a := annotator{sources: sources}

	var errList resolve.ErrorList
	if errors.As(err, &errList) {
		word := "errors"
		if len(errList) == 1 {
			word = "error"
		}
		fmt.Fprintf(sb, "%d %s while resolving:\n", len(errList), word)
		for _, e := range errList {
			fmt.Fprintf(sb, "error: %s\n", e.Msg)
			fmt.Fprintf(sb, "  %s:\n", e.Pos)
			lineWithArrow(sb, a.sourceLine(e.Pos.Filename(), e.Pos.Line), e.Pos, true)
		}
		return sb.String()
	}
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		fmt.Fprintf(sb, "syntax error: %s\n", syntaxErr.Msg)
		fmt.Fprintf(sb, "  %s:\n", syntaxErr.Pos)
		lineWithArrow(sb, a.sourceLine(syntaxErr.Pos.Filename(), syntaxErr.Pos.Line), syntaxErr.Pos, true)
		return sb.String()
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		stack := evalErr.CallStack
		if len(stack) > 0 && stack.At(0).Pos.Filename() == "assert.star" {
			stack = stack[:len(stack)-1]
		}
		fmt.Fprintln(sb)
		fmt.Fprintf(sb, "error: %s\n", evalErr.Msg)
		fmt.Fprint(sb, a.callStackString(stack))
		return sb.String()
	}
	fmt.Fprintf(sb, "%+v\n", err)
	return sb.String()
}

type annotator struct {
	sources SourceFunc
}

func (a annotator) callStackString(stack starlark.CallStack) string {
	out := new(strings.Builder)
	fmt.Fprintf(out, "traceback (most recent call last):\n")

	for i, fr := range stack {
		fmt.Fprintf(out, "  %s: in %s\n", fr.Pos, fr.Name)
		line := a.sourceLine(fr.Pos.Filename(), fr.Pos.Line)
		lineWithArrow(out, line, fr.Pos, i == len(stack)-1)
	}
	return out.String()
}

func lineWithArrow(out io.Writer, line string, pos syntax.Position, showArrow bool) {
	if line == "" {
		return
	}
	trimmed := strings.TrimSpace(line)
	fmt.Fprintf(out, "    %s\n", trimmed)
	if showArrow {
		indent := int(pos.Col) - 1 - (len(line) - len(strings.TrimLeft(line, " \t")))
		if indent < 0 {
			indent = 0
		}
		fmt.Fprintf(out, "    %s^\n", strings.Repeat(" ", indent))
	}
}

func (a annotator) sourceLine(filename string, lineNumber int32) string {
	var r io.Reader
	if src, ok := a.lookup(filename); ok {
		r = strings.NewReader(src)
	} else {
		f, err := os.Open(filename)
		if err != nil {
			return ""
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var index int32 = 1
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if index == lineNumber {
			return scanner.Text()
		}
		index++
	}
	return ""
}

func (a annotator) lookup(filename string) (string, bool) {
	if a.sources == nil {
		return "", false
	}
	return a.sources(filename)
}
