package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETagSidecar(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "grid.zip")

	assert.Equal(t, "", readETag(dest))

	writeETag(dest, `"v42"`)
	assert.Equal(t, `"v42"`, readETag(dest))

	data, err := os.ReadFile(dest + ".etag")
	require.NoError(t, err)
	assert.Equal(t, "\"v42\"\n", string(data))
}
