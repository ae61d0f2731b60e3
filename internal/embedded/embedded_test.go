package embedded

import (
	"testing"

	"github.com/maxmcd/shaderloom/internal/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleIsCurrent(t *testing.T) {
	units, err := bundle.Collect(ScriptsDir)
	require.NoError(t, err)
	require.NoError(t, bundle.Check(units))
	assert.Equal(t, bundle.Render(units), Bundle, "run go generate ./internal/embedded")
}
