package starutil

import (
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

func DictToGoStringMap(dict *starlark.Dict) (out map[string]string, err error) {
	out = make(map[string]string)
	for _, key := range dict.Keys() {
		val, _, _ := dict.Get(key)
		keyString, err := ValueToString(key)
		if err != nil {
			return nil, err
		}
		valString, err := ValueToString(val)
		if err != nil {
			return nil, errors.Wrapf(err, "value for key %q", keyString)
		}
		out[keyString] = valString
	}
	return
}

// GoStringMapToDict builds a frozen dict.
func GoStringMapToDict(m map[string]string) *starlark.Dict {
	dict := starlark.NewDict(len(m))
	for k, v := range m {
		_ = dict.SetKey(starlark.String(k), starlark.String(v))
	}
	dict.Freeze()
	return dict
}

func ValueToString(val starlark.Value) (out string, err error) {
	switch v := val.(type) {
	case starlark.String:
		out = v.GoString()
	case starlark.Int:
		out = v.String()
	case starlark.Bool:
		if v {
			out = "true"
		} else {
			out = "false"
		}
	default:
		return "", errors.Errorf("don't know how to cast type %q into a string", v.Type())
	}
	return
}
