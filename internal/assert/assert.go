// Package assert provides the "assert" value predeclared in every script
// module, used by module test() functions.
package assert

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

const assertSource = `
def _eq(x, y):
    if x != y:
        error("%r != %r" % (x, y))

def _ne(x, y):
    if x == y:
        error("%r == %r" % (x, y))

def _true(cond, msg = "assertion failed"):
    if not cond:
        error(msg)

def _false(cond, msg = "assertion failed"):
    if cond:
        error(msg)

def _none(x):
    if x != None:
        error("%r is not None" % (x,))

def _len(x, n):
    if len(x) != n:
        error("len(%r) is %d, want %d" % (x, len(x), n))

def _lt(x, y):
    if not (x < y):
        error("%s is not less than %s" % (x, y))

def _contains(x, y):
    if y not in x:
        error("%r does not contain %r" % (x, y))

def _fails(f, pattern):
    msg = catch(f)
    if msg == None:
        error("evaluation succeeded unexpectedly (want error matching %r)" % pattern)
    elif not matches(pattern, msg):
        error("regular expression (%s) did not match error (%s)" % (pattern, msg))

assert = module(
    "assert",
    fail = error,
    eq = _eq,
    ne = _ne,
    true = _true,
    false = _false,
    none = _none,
    len = _len,
    lt = _lt,
    contains = _contains,
    fails = _fails,
)
`

// Copyright 2017 The Bazel Authors. All rights reserved.

const localKey = "Reporter"

// A Reporter is a value to which assertion failures are reported.
type Reporter interface {
	Error(err error)
	FailNow() bool
}

// SetReporter associates a reporter with the thread. Threads without one fail
// on the first assertion.
func SetReporter(thread *starlark.Thread, r Reporter) {
	thread.SetLocal(localKey, r)
}

// GetReporter returns the thread's reporter, if any.
func GetReporter(thread *starlark.Thread) Reporter {
	r, _ := thread.Local(localKey).(Reporter)
	return r
}

// Collector records every failure and lets execution continue.
type Collector struct {
	Errors []error
}

func (c *Collector) Error(err error) { c.Errors = append(c.Errors, err) }
func (c *Collector) FailNow() bool   { return false }

// Err folds the collected failures into one error, nil if there were none.
func (c *Collector) Err() error {
	if len(c.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(c.Errors))
	for _, err := range c.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("%d assertion(s) failed:\n%s", len(c.Errors), strings.Join(msgs, "\n"))
}

var (
	once      sync.Once
	module    starlark.Value
	moduleErr error
)

// Module returns the frozen assert module. It is concurrency-safe.
func Module() (starlark.Value, error) {
	once.Do(func() {
		predeclared := starlark.StringDict{
			"error":   starlark.NewBuiltin("error", Error),
			"catch":   starlark.NewBuiltin("catch", catch),
			"matches": starlark.NewBuiltin("matches", matches),
			"module":  starlark.NewBuiltin("module", starlarkstruct.MakeModule),
		}
		thread := &starlark.Thread{Name: "assert"}
		var globals starlark.StringDict
		globals, moduleErr = starlark.ExecFile(thread, "assert.star", assertSource, predeclared)
		if moduleErr == nil {
			globals.Freeze()
			module = globals["assert"]
		}
	})
	return module, moduleErr
}

// catch(f) evaluates f() and returns its evaluation error message
// if it failed or None if it succeeded.
func catch(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs("catch", args, kwargs, "fn", &fn); err != nil {
		return nil, err
	}
	if _, err := starlark.Call(thread, fn, nil, nil); err != nil {
		return starlark.String(err.Error()), nil
	}
	return starlark.None, nil
}

// matches(pattern, str) reports whether string str matches the regular expression pattern.
func matches(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, str string
	if err := starlark.UnpackArgs("matches", args, kwargs, "pattern", &pattern, "str", &str); err != nil {
		return nil, err
	}
	ok, err := regexp.MatchString(pattern, str)
	if err != nil {
		return nil, fmt.Errorf("matches: %s", err)
	}
	return starlark.Bool(ok), nil
}

// Error reports an assertion failure to the thread's reporter.
func Error(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("error: got %d arguments, want 1", len(args))
	}
	stk := thread.CallStack()
	stk.Pop()
	err := &starlark.EvalError{
		CallStack: stk,
	}
	if s, ok := starlark.AsString(args[0]); ok {
		err.Msg = s
	} else {
		err.Msg = args[0].String()
	}
	reporter := GetReporter(thread)
	if reporter == nil {
		return starlark.None, err
	}
	reporter.Error(err)
	if reporter.FailNow() {
		return starlark.None, err
	}
	return starlark.None, nil
}
