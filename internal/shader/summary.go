package shader

import (
	"strconv"
	"strings"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
)

type EntryPoint struct {
	Name      string
	Stage     string
	Workgroup [3]uint32
}

type Field struct {
	Name string
	Type string
}

type Struct struct {
	Name    string
	Members []Field
}

// Global is a module-scope variable. Group and Binding are -1 when the
// attribute is absent.
type Global struct {
	Name         string
	Type         string
	AddressSpace string
	AccessMode   string
	Group        int
	Binding      int
}

func (m *Module) EntryPoints() []EntryPoint {
	out := make([]EntryPoint, 0, len(m.IR.EntryPoints))
	for _, ep := range m.IR.EntryPoints {
		out = append(out, EntryPoint{Name: ep.Name, Stage: stageName(ep.Stage), Workgroup: ep.Workgroup})
	}
	return out
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	}
	return "unknown"
}

func (m *Module) Functions() []string {
	out := make([]string, 0, len(m.AST.Functions))
	for _, fn := range m.AST.Functions {
		out = append(out, fn.Name)
	}
	return out
}

func (m *Module) Constants() []string {
	out := make([]string, 0, len(m.AST.Constants))
	for _, c := range m.AST.Constants {
		out = append(out, c.Name)
	}
	return out
}

func (m *Module) Structs() []Struct {
	out := make([]Struct, 0, len(m.AST.Structs))
	for _, s := range m.AST.Structs {
		st := Struct{Name: s.Name}
		for _, member := range s.Members {
			st.Members = append(st.Members, Field{Name: member.Name, Type: TypeString(member.Type)})
		}
		out = append(out, st)
	}
	return out
}

func (m *Module) Globals() []Global {
	out := make([]Global, 0, len(m.AST.GlobalVars))
	for _, v := range m.AST.GlobalVars {
		out = append(out, Global{
			Name:         v.Name,
			Type:         TypeString(v.Type),
			AddressSpace: v.AddressSpace,
			AccessMode:   v.AccessMode,
			Group:        intAttribute(v.Attributes, "group"),
			Binding:      intAttribute(v.Attributes, "binding"),
		})
	}
	return out
}

func intAttribute(attrs []wgsl.Attribute, name string) int {
	for _, a := range attrs {
		if a.Name != name || len(a.Args) == 0 {
			continue
		}
		if lit, ok := a.Args[0].(*wgsl.Literal); ok {
			if n, err := strconv.Atoi(strings.TrimRight(lit.Value, "iu")); err == nil {
				return n
			}
		}
	}
	return -1
}

// TypeString renders a type the way it is spelled in WGSL source.
func TypeString(t wgsl.Type) string {
	switch t := t.(type) {
	case nil:
		return ""
	case *wgsl.NamedType:
		if len(t.TypeParams) == 0 {
			return t.Name
		}
		params := make([]string, 0, len(t.TypeParams))
		for _, p := range t.TypeParams {
			params = append(params, TypeString(p))
		}
		return t.Name + "<" + strings.Join(params, ", ") + ">"
	case *wgsl.ArrayType:
		return sized("array", TypeString(t.Element), t.Size)
	case *wgsl.BindingArrayType:
		return sized("binding_array", TypeString(t.Element), t.Size)
	case *wgsl.PtrType:
		parts := []string{t.AddressSpace, TypeString(t.PointeeType)}
		if t.AccessMode != "" {
			parts = append(parts, t.AccessMode)
		}
		return "ptr<" + strings.Join(parts, ", ") + ">"
	}
	return "?"
}

func sized(name, elem string, size wgsl.Expr) string {
	switch s := size.(type) {
	case *wgsl.Literal:
		return name + "<" + elem + ", " + s.Value + ">"
	case *wgsl.Ident:
		return name + "<" + elem + ", " + s.Name + ">"
	}
	return name + "<" + elem + ">"
}
