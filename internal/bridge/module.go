package bridge

import (
	"fmt"

	"github.com/maxmcd/shaderloom/internal/shader"
	"github.com/maxmcd/shaderloom/internal/starutil"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// shaderModule is the opaque parsed shader handed to scripts. Its attributes
// are read-only summaries of the module.
type shaderModule struct {
	m *shader.Module
}

var _ starlark.HasAttrs = new(shaderModule)

func (sm *shaderModule) String() string {
	return fmt.Sprintf("<shader_module %d functions, %d entry points>", len(sm.m.AST.Functions), len(sm.m.IR.EntryPoints))
}
func (sm *shaderModule) Type() string          { return "shader_module" }
func (sm *shaderModule) Freeze()               {}
func (sm *shaderModule) Truth() starlark.Bool  { return true }
func (sm *shaderModule) Hash() (uint32, error) { return 0, starutil.ErrUnhashable("shader_module") }

var shaderModuleAttrs = []string{"constants", "entry_points", "functions", "globals", "source", "structs"}

func (sm *shaderModule) AttrNames() []string { return shaderModuleAttrs }

func (sm *shaderModule) Attr(name string) (starlark.Value, error) {
	switch name {
	case "source":
		return starlark.String(sm.m.Source), nil
	case "functions":
		return stringList(sm.m.Functions()), nil
	case "constants":
		return stringList(sm.m.Constants()), nil
	case "entry_points":
		var out []starlark.Value
		for _, ep := range sm.m.EntryPoints() {
			out = append(out, record("entry_point", starlark.StringDict{
				"name":  starlark.String(ep.Name),
				"stage": starlark.String(ep.Stage),
				"workgroup_size": starlark.Tuple{
					starlark.MakeUint(uint(ep.Workgroup[0])),
					starlark.MakeUint(uint(ep.Workgroup[1])),
					starlark.MakeUint(uint(ep.Workgroup[2])),
				},
			}))
		}
		return frozenList(out), nil
	case "structs":
		var out []starlark.Value
		for _, s := range sm.m.Structs() {
			var members []starlark.Value
			for _, f := range s.Members {
				members = append(members, record("struct_member", starlark.StringDict{
					"name": starlark.String(f.Name),
					"type": starlark.String(f.Type),
				}))
			}
			out = append(out, record("struct", starlark.StringDict{
				"name":    starlark.String(s.Name),
				"members": frozenList(members),
			}))
		}
		return frozenList(out), nil
	case "globals":
		var out []starlark.Value
		for _, g := range sm.m.Globals() {
			out = append(out, record("global", starlark.StringDict{
				"name":          starlark.String(g.Name),
				"type":          starlark.String(g.Type),
				"address_space": optionalString(g.AddressSpace),
				"access_mode":   optionalString(g.AccessMode),
				"group":         optionalInt(g.Group),
				"binding":       optionalInt(g.Binding),
			}))
		}
		return frozenList(out), nil
	}
	return nil, nil
}

func record(name string, fields starlark.StringDict) *starlarkstruct.Struct {
	s := starlarkstruct.FromStringDict(starlark.String(name), fields)
	s.Freeze()
	return s
}

func optionalInt(i int) starlark.Value {
	if i < 0 {
		return starlark.None
	}
	return starlark.MakeInt(i)
}

func stringList(in []string) *starlark.List {
	out := make([]starlark.Value, 0, len(in))
	for _, s := range in {
		out = append(out, starlark.String(s))
	}
	return frozenList(out)
}

func frozenList(values []starlark.Value) *starlark.List {
	l := starlark.NewList(values)
	l.Freeze()
	return l
}
