package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Settings
		wantErr bool
		errText string
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name: "full",
			input: `
[loom]
min_version = "0.1.0"
sandbox = true

[defines]
target = "wgpu"
`,
			want: Settings{
				Loom:    Loom{MinVersion: "0.1.0", Sandbox: true},
				Defines: map[string]string{"target": "wgpu"},
			},
		},
		{
			name:    "bad version",
			input:   "[loom]\nmin_version = \"one\"\n",
			wantErr: true,
			errText: "not a valid semantic version",
		},
		{
			name:    "bad toml",
			input:   "[loom",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindSettings(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	s, location, err := FindSettings(nested)
	require.NoError(t, err)
	assert.Equal(t, "", location)
	assert.Equal(t, Settings{}, s)

	file := filepath.Join(root, "a", FileName)
	require.NoError(t, os.WriteFile(file, []byte("[defines]\nx = \"1\"\n"), 0644))
	s, location, err = FindSettings(nested)
	require.NoError(t, err)
	assert.Equal(t, file, location)
	assert.Equal(t, "1", s.Defines["x"])
}

func TestSettings_CheckVersion(t *testing.T) {
	assert.NoError(t, Settings{}.CheckVersion("0.1.0"))
	assert.NoError(t, Settings{Loom: Loom{MinVersion: "0.1.0"}}.CheckVersion("0.1.0"))
	assert.NoError(t, Settings{Loom: Loom{MinVersion: "0.1.0"}}.CheckVersion("0.2.0"))
	assert.Error(t, Settings{Loom: Loom{MinVersion: "1.0.0"}}.CheckVersion("0.2.0"))
}

func TestFromPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		path    string
		wantDir string
	}{
		{path: "loom.star", wantDir: ""},
		{path: "./loom.star", wantDir: "."},
		{path: "shaders/loom.star", wantDir: "shaders"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			inv := FromPath(tt.path)
			assert.Equal(t, tt.path, inv.ScriptPath)
			assert.Equal(t, tt.wantDir, inv.ScriptDir)
			assert.Equal(t, filepath.Join(wd, tt.path), inv.AbsScriptPath)
			assert.Equal(t, filepath.Dir(filepath.Join(wd, tt.path)), inv.AbsScriptDir)
		})
	}
}

func TestInvocation_WithDefines(t *testing.T) {
	inv := FromPath("x.star").WithDefines(
		map[string]string{"a": "1", "b": "1"},
		nil,
		map[string]string{"b": "2"},
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, inv.Defines)
}
