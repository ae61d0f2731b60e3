package bundle

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

const (
	// EmbedTable is the name the artifact assigns module sources into.
	EmbedTable = "_EMBED"

	header = "# Code generated by loombundle. DO NOT EDIT.\n"
)

// Render produces the artifact: one table assignment per unit in logical
// path order, then the bootstrap call.
func Render(units []SourceUnit) string {
	sorted := append([]SourceUnit(nil), units...)
	Sort(sorted)

	var sb strings.Builder
	sb.WriteString(header)
	for _, u := range sorted {
		sb.WriteString(EmbedTable)
		sb.WriteString("[")
		sb.WriteString(starlark.String(u.LogicalPath).String())
		sb.WriteString("] = ")
		sb.WriteString(starlark.String(u.Content).String())
		sb.WriteString("\n")
	}
	sb.WriteString(registry.Bootstrap)
	sb.WriteString("()\n")
	return sb.String()
}

// Digest is the hex sha256 of an artifact.
func Digest(artifact string) string {
	sum := sha256.Sum256([]byte(artifact))
	return hex.EncodeToString(sum[:])
}

// WriteFile replaces path with artifact via a rename, so readers never see a
// partial file.
func WriteFile(path, artifact string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "writing bundle")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.WriteString(artifact); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing bundle")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "writing bundle")
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "writing bundle")
}
