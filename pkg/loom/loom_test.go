package loom

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maxmcd/shaderloom/internal/bundle"
	"github.com/maxmcd/shaderloom/internal/config"
	"github.com/maxmcd/shaderloom/internal/embedded"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scriptsDir = filepath.Join("..", "..", "internal", "embedded", embedded.ScriptsDir)

// testArtifact bundles the real scripts plus extra, which may override them.
func testArtifact(t *testing.T, extra map[string]string) string {
	t.Helper()
	units, err := bundle.Collect(scriptsDir)
	require.NoError(t, err)
	var kept []bundle.SourceUnit
	for _, u := range units {
		if _, overridden := extra[u.LogicalPath]; !overridden {
			kept = append(kept, u)
		}
	}
	for path, content := range extra {
		kept = append(kept, bundle.SourceUnit{LogicalPath: path, Content: content})
	}
	require.NoError(t, bundle.Check(kept))
	return bundle.Render(kept)
}

func newTestLoom(t *testing.T, extra map[string]string, opts ...Option) (*Loom, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithArtifact(testArtifact(t, extra)), WithLogOutput(&buf)}, opts...)
	return New(opts...), &buf
}

func TestEmbeddedModules(t *testing.T) {
	l := New(WithLogOutput(&bytes.Buffer{}))
	assert.Equal(t, []string{
		"_init.star",
		"analysis/wgsl.star",
		"dev/info.star",
		"loom/build.star",
		"utils/common.star",
		"utils/stringmanip.star",
	}, l.Modules())
	assert.Equal(t, bundle.Digest(embedded.Bundle), l.Digest())
}

func TestSelfTests(t *testing.T) {
	l := New(WithLogOutput(&bytes.Buffer{}))
	for _, module := range []string{"utils.common", "utils.stringmanip", "analysis.wgsl", "dev.info"} {
		t.Run(module, func(t *testing.T) {
			assert.NoError(t, l.RunTests(context.Background(), module))
		})
	}
}

func TestRunTests_ReportsFailures(t *testing.T) {
	l, _ := newTestLoom(t, map[string]string{
		"broken.star": "def test():\n    assert.eq(1, 2)\n    assert.true(False, \"second\")\n",
	})
	err := l.RunTests(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 assertion(s) failed")
	assert.Contains(t, err.Error(), "1 != 2")
	assert.Contains(t, err.Error(), "second")
}

func TestNew_Panics(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
	}{
		{name: "empty bundle", artifact: bundle.Render(nil)},
		{name: "no bootstrap call", artifact: `_EMBED["_init.star"] = "x = 1"` + "\n"},
		{name: "bootstrap fails", artifact: bundle.Render([]bundle.SourceUnit{{LogicalPath: "_init.star", Content: "fail(\"boom\")"}})},
		{name: "syntax error", artifact: "_EMBED[\n"},
		{name: "duplicate entry", artifact: "_EMBED[\"a.star\"] = \"\"\n_EMBED[\"a.star\"] = \"\"\n_init()\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { New(WithArtifact(tt.artifact), WithLogOutput(&bytes.Buffer{})) })
		})
	}
}

func TestNew_BootstrapRunsOnce(t *testing.T) {
	_, buf := newTestLoom(t, map[string]string{
		"_init.star": "native.log(\"booted\")\n" + mustRead(t, filepath.Join(scriptsDir, "_init.star")),
		"lazy.star":  "native.log(\"lazy ran\")\ndef main():\n    pass\n",
	})
	// only the bootstrap executes at load time
	assert.Equal(t, "booted\n", buf.String())
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRun(t *testing.T) {
	l, buf := newTestLoom(t, map[string]string{
		"tools/echo.star": "def main(arg = \"none\"):\n    native.log(\"echo \" + arg)\n    print(\"printed\")\n",
		"tools/count.star": "native.log(\"init\")\ndef main():\n    native.log(\"main\")\n",
	})
	ctx := context.Background()

	require.NoError(t, l.Run(ctx, "tools.echo"))
	require.NoError(t, l.Run(ctx, "tools/echo", "hi"))
	require.NoError(t, l.Run(ctx, "tools/echo.star", "again"))
	require.NoError(t, l.Run(ctx, "tools.count"))
	require.NoError(t, l.Run(ctx, "tools.count"))
	assert.Equal(t, "echo none\nprinted\necho hi\nprinted\necho again\nprinted\ninit\nmain\nmain\n", buf.String())

	err := l.Run(ctx, "tools.echo", "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one argument")
}

func TestRun_UnknownModule(t *testing.T) {
	l, _ := newTestLoom(t, nil)
	err := l.Run(context.Background(), "no.such.module")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no.such.module")
	assert.True(t, strings.HasPrefix(err.Error(), "run: "))
}

func TestRun_NoMain(t *testing.T) {
	l, _ := newTestLoom(t, map[string]string{"lib.star": "x = 1\n"})
	err := l.Run(context.Background(), "lib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no main() function")
}

func TestRun_PrivateNamesHidden(t *testing.T) {
	l, _ := newTestLoom(t, map[string]string{
		"a.star": "def _secret():\n    return 1\ndef main():\n    pass\n",
		"b.star": "def main():\n    return require(\"a\")._secret()\n",
	})
	assert.Error(t, l.Run(context.Background(), "b"))
}

func TestDeterminism(t *testing.T) {
	extra := map[string]string{
		"tools/walk.star": `
def main():
    d = {"z": 1, "a": 2, "m": 3}
    for k in d:
        native.log(k)
    native.log(json.encode(struct(b = 1, a = [1, 2])))
    native.log(str(sorted(["b", "c", "a"])))
`,
	}
	var outputs []string
	for i := 0; i < 3; i++ {
		l, buf := newTestLoom(t, extra)
		require.NoError(t, l.Run(context.Background(), "tools.walk"))
		outputs = append(outputs, buf.String())
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
	assert.Equal(t, testArtifact(t, extra), testArtifact(t, extra))
}

func TestConfig(t *testing.T) {
	l, buf := newTestLoom(t, nil)
	ctx := context.Background()

	require.NoError(t, l.Run(ctx, "dev.info"))
	assert.Equal(t, "config: none\n", buf.String())

	buf.Reset()
	l.UpdateConfig(config.FromPath("shaders/pipeline.star").WithDefines(map[string]string{"target": "wgpu"}))
	require.NoError(t, l.Run(ctx, "dev.info"))
	assert.Contains(t, buf.String(), "script_path: shaders/pipeline.star\n")
	assert.Contains(t, buf.String(), "script_dir: shaders\n")
	assert.Contains(t, buf.String(), `defines: {"target":"wgpu"}`)

	// a second delivery replaces the first entirely
	buf.Reset()
	l.UpdateConfig(config.FromPath("pipeline.star"))
	require.NoError(t, l.Run(ctx, "dev.info"))
	assert.Contains(t, buf.String(), "script_path: pipeline.star\n")
	assert.Contains(t, buf.String(), "script_dir: (absent)\n")
	assert.Contains(t, buf.String(), "defines: {}\n")
	assert.NotContains(t, buf.String(), "shaders")
	assert.NotContains(t, buf.String(), "wgpu")
}
