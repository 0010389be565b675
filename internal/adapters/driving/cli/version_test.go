package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	out, err := execute("version")

	require.NoError(t, err)
	assert.Contains(t, out, "regsift version")
}

func TestSetVersion(t *testing.T) {
	old := version
	defer func() { version = old }()

	SetVersion("1.2.3")
	out, err := execute("version")

	require.NoError(t, err)
	assert.Contains(t, out, "regsift version 1.2.3")

	// Empty string keeps the current version.
	SetVersion("")
	assert.Equal(t, "1.2.3", version)
}
