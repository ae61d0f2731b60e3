package loom

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxmcd/shaderloom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

const pipeline = `
load("utils/common.star", "define")
load("helpers.star", "shout")

def build():
    native.log("building " + config().script_path)
    return {"out/shader.wgsl": shout(define("target", "none"))}
`

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"loom.star":    pipeline,
		"helpers.star": "def shout(s):\n    return s.upper()\n",
		config.FileName: "[defines]\ntarget = \"vulkan\"\n",
	})
	path := filepath.Join(dir, "loom.star")

	var buf bytes.Buffer
	l := New(WithLogOutput(&buf))
	require.NoError(t, l.Build(context.Background(), path))
	assert.Equal(t, "building "+path+"\n", buf.String())

	out, err := os.ReadFile(filepath.Join(dir, "out", "shader.wgsl"))
	require.NoError(t, err)
	assert.Equal(t, "VULKAN", string(out))

	// caller defines win over the settings file
	l = New(WithLogOutput(&buf), WithDefines(map[string]string{"target": "metal"}))
	require.NoError(t, l.Build(context.Background(), path))
	out, err = os.ReadFile(filepath.Join(dir, "out", "shader.wgsl"))
	require.NoError(t, err)
	assert.Equal(t, "METAL", string(out))
}

func TestBuild_ConfigIsReplaced(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFiles(t, first, map[string]string{
		"a.star":        "def build():\n    native.log(config().defines[\"only_first\"])\n",
		config.FileName: "[defines]\nonly_first = \"yes\"\n",
	})
	writeFiles(t, second, map[string]string{
		"b.star": "def build():\n    native.log(str(\"only_first\" in config().defines))\n    native.log(config().abs_script_dir)\n",
	})

	var buf bytes.Buffer
	l := New(WithLogOutput(&buf))
	ctx := context.Background()
	require.NoError(t, l.Build(ctx, filepath.Join(first, "a.star")))
	require.NoError(t, l.Build(ctx, filepath.Join(second, "b.star")))
	assert.Equal(t, "yes\nFalse\n"+second+"\n", buf.String())
}

func TestBuild_NoBuildFunction(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"loom.star": "native.log(\"top level only\")\n"})

	var buf bytes.Buffer
	require.NoError(t, New(WithLogOutput(&buf)).Build(context.Background(), filepath.Join(dir, "loom.star")))
	assert.Equal(t, "top level only\n", buf.String())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		opts    []Option
		errText string
	}{
		{
			name:    "missing pipeline",
			files:   map[string]string{},
			errText: "loom.star",
		},
		{
			name:    "script failure",
			files:   map[string]string{"loom.star": "def build():\n    fail(\"nope\")\n"},
			errText: "nope",
		},
		{
			name:    "bad return",
			files:   map[string]string{"loom.star": "def build():\n    return [1]\n"},
			errText: "must return a dict",
		},
		{
			name:    "output escapes",
			files:   map[string]string{"loom.star": "def build():\n    return {\"../evil.txt\": \"x\"}\n"},
			errText: "outside of",
		},
		{
			name:    "absolute output",
			files:   map[string]string{"loom.star": "def build():\n    return {\"/tmp/evil.txt\": \"x\"}\n"},
			errText: "relative path",
		},
		{
			name: "version too old",
			files: map[string]string{
				"loom.star":     "",
				config.FileName: "[loom]\nmin_version = \"99.0.0\"\n",
			},
			errText: "requires loom 99.0.0",
		},
		{
			name: "fallback disabled",
			files: map[string]string{
				"loom.star":    "load(\"helpers.star\", \"x\")\ndef build():\n    pass\n",
				"helpers.star": "x = 1\n",
			},
			opts:    []Option{WithoutFallback()},
			errText: "helpers.star",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)
			l := New(append([]Option{WithLogOutput(&bytes.Buffer{})}, tt.opts...)...)
			err := l.Build(context.Background(), filepath.Join(dir, "loom.star"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "build: ")
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestBuild_Sandbox(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"shared.star":       "value = \"shared\"\n",
		"project/loom.star": "load(\"../shared.star\", \"value\")\ndef build():\n    native.log(value)\n",
	})
	path := filepath.Join(root, "project", "loom.star")
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, New(WithLogOutput(&buf)).Build(ctx, path))
	assert.Equal(t, "shared\n", buf.String())

	err := New(WithLogOutput(&buf), WithSandbox()).Build(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "../shared.star")

	writeFiles(t, root, map[string]string{"project/" + config.FileName: "[loom]\nsandbox = true\n"})
	assert.Error(t, New(WithLogOutput(&buf)).Build(ctx, path))
}

func TestBuild_WithoutFallback(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"loom.star": "load(\"utils/common.star\", \"default\")\ndef build():\n    native.log(default(None, \"embedded only\"))\n",
	})

	var buf bytes.Buffer
	l := New(WithLogOutput(&buf), WithoutFallback())
	require.NoError(t, l.Build(context.Background(), filepath.Join(dir, "loom.star")))
	assert.Equal(t, "embedded only\n", buf.String())
}

func TestRun_CannotReachDisk(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"loom.star":  "def build():\n    pass\n",
		"tool.star":  "def main():\n    native.log(\"disk\")\n",
	})
	l := New(WithLogOutput(&bytes.Buffer{}))
	ctx := context.Background()
	require.NoError(t, l.Build(ctx, filepath.Join(dir, "loom.star")))
	err := l.Run(ctx, filepath.Join(dir, "tool.star"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
