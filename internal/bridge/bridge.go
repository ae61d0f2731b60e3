// Package bridge exposes host capabilities to scripts. The capabilities are
// the only native functionality a script can reach.
package bridge

import (
	"fmt"
	"io"

	"github.com/maxmcd/shaderloom/internal/globutil"
	"github.com/maxmcd/shaderloom/internal/shader"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Namespace is the predeclared name scripts reach the capabilities under.
const Namespace = "native"

// Capabilities holds one function per native operation. A nil field makes
// the operation fail when called.
type Capabilities struct {
	Glob                   func(pattern string) ([]globutil.Item, error)
	ParseShader            func(source string) (*shader.Module, error)
	ParseAndValidateShader func(source string, flags shader.ValidationFlags) shader.Outcome
	Log                    func(message string)
}

// Default returns the host implementations, logging to w.
func Default(w io.Writer) Capabilities {
	return Capabilities{
		Glob:                   globutil.Glob,
		ParseShader:            shader.Parse,
		ParseAndValidateShader: shader.ParseAndValidate,
		Log: func(message string) {
			fmt.Fprintln(w, message)
		},
	}
}

// Module converts the capabilities into the frozen namespace value.
func (c Capabilities) Module() *starlarkstruct.Module {
	m := &starlarkstruct.Module{
		Name: Namespace,
		Members: starlark.StringDict{
			"glob":                      starlark.NewBuiltin("glob", c.glob),
			"parse_shader":              starlark.NewBuiltin("parse_shader", c.parseShader),
			"parse_and_validate_shader": starlark.NewBuiltin("parse_and_validate_shader", c.parseAndValidateShader),
			"log":                       starlark.NewBuiltin("log", c.log),
		},
	}
	m.Freeze()
	return m
}

func unavailable(b *starlark.Builtin) error {
	return errors.Errorf("%s.%s is not available", Namespace, b.Name())
}

// glob implements native.glob. Each item's read() method is the only way
// scripts can read a file, and only files a glob matched can be read.
func (c Capabilities) glob(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern); err != nil {
		return nil, err
	}
	if c.Glob == nil {
		return nil, unavailable(b)
	}
	items, err := c.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]starlark.Value, 0, len(items))
	for _, item := range items {
		out = append(out, globItemValue(item))
	}
	return starlark.NewList(out), nil
}

func (c Capabilities) parseShader(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var source string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "source", &source); err != nil {
		return nil, err
	}
	if c.ParseShader == nil {
		return nil, unavailable(b)
	}
	m, err := c.ParseShader(source)
	if err != nil {
		return nil, errors.Wrap(err, "shader parse failed")
	}
	return &shaderModule{m: m}, nil
}

func (c Capabilities) parseAndValidateShader(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		source string
		flags  starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "source", &source, "validation_flags?", &flags); err != nil {
		return nil, err
	}
	if c.ParseAndValidateShader == nil {
		return nil, unavailable(b)
	}
	vf, err := validationFlags(flags)
	if err != nil {
		return nil, err
	}
	outcome := c.ParseAndValidateShader(source, vf)
	var module, diagnostic starlark.Value = starlark.None, starlark.None
	if outcome.Module != nil {
		module = &shaderModule{m: outcome.Module}
	}
	if outcome.Diagnostic != "" {
		diagnostic = starlark.String(outcome.Diagnostic)
	}
	return starlark.Tuple{module, diagnostic}, nil
}

// validationFlags reads the optional flags argument. None selects every
// class, unknown bits are dropped.
func validationFlags(v starlark.Value) (shader.ValidationFlags, error) {
	if v == starlark.None {
		return shader.ValidateAll, nil
	}
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, errors.Errorf("validation_flags must be an int or None, got %s", v.Type())
	}
	if i.Sign() < 0 {
		return 0, errors.Errorf("validation_flags must be a non-negative int, got %s", i)
	}
	// Mask before narrowing so bits past 64 are dropped like other unknown bits.
	bits, _ := i.And(starlark.MakeUint64(uint64(shader.ValidateAll))).Uint64()
	return shader.FlagsFromBits(bits), nil
}

func (c Capabilities) log(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "message", &message); err != nil {
		return nil, err
	}
	if c.Log == nil {
		return nil, unavailable(b)
	}
	c.Log(message)
	return starlark.None, nil
}

func optionalString(s string) starlark.Value {
	if s == "" {
		return starlark.None
	}
	return starlark.String(s)
}

// globItemValue exposes item to scripts. read() returns the file contents
// and fails for anything that is not a regular file.
func globItemValue(item globutil.Item) starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("glob_item"), starlark.StringDict{
		"path":          starlark.String(item.Path),
		"absolute_path": optionalString(item.AbsPath),
		"is_file":       starlark.Bool(item.IsFile),
		"is_dir":        starlark.Bool(item.IsDir),
		"file_name":     optionalString(item.FileName),
		"read": starlark.NewBuiltin("read", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			content, err := item.Read()
			if err != nil {
				return nil, err
			}
			return starlark.String(content), nil
		}),
	})
}
