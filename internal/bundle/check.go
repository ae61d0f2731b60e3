package bundle

import (
	"github.com/maxmcd/dag"
	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/pkg/errors"
	"go.starlark.net/syntax"
)

// fakeRoot ties every unit into one graph, dag validation wants one root.
const fakeRoot = "//bundle"

// Check statically verifies units: each must parse, every load() must name
// another unit of the bundle, and the load graph must be acyclic.
func Check(units []SourceUnit) error {
	present := map[string]bool{}
	for _, u := range units {
		present[u.LogicalPath] = true
	}
	if !present[registry.BootstrapModule] {
		return errors.Errorf("bundle has no %s", registry.BootstrapModule)
	}

	graph := &dag.AcyclicGraph{}
	graph.Add(fakeRoot)
	for _, u := range units {
		graph.Add(u.LogicalPath)
		graph.Connect(dag.BasicEdge(fakeRoot, u.LogicalPath))
	}
	for _, u := range units {
		loads, err := loadTargets(u)
		if err != nil {
			return err
		}
		for _, target := range loads {
			if !present[target] {
				return errors.Errorf("%s loads %q which is not in the bundle", u.Origin, target)
			}
			graph.Connect(dag.BasicEdge(u.LogicalPath, target))
		}
	}
	if err := graph.Validate(); err != nil {
		return errors.Wrap(err, "bundle load graph")
	}
	return nil
}

func loadTargets(u SourceUnit) ([]string, error) {
	name := u.Origin
	if name == "" {
		name = u.LogicalPath
	}
	f, err := syntax.Parse(name, u.Content, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, stmt := range f.Stmts {
		if load, ok := stmt.(*syntax.LoadStmt); ok {
			out = append(out, registry.ModulePath(load.ModuleName()))
		}
	}
	return out, nil
}
