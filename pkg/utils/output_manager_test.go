package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManagerRelocate(t *testing.T) {
	root := t.TempDir()
	om := NewOutputManager(filepath.Join(root, "processed"), filepath.Join(root, "error"))
	require.NoError(t, om.EnsureOutputDirsExist())

	src := filepath.Join(root, "Sales_May_2019.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n"), 0644))

	dst, err := om.Quarantine(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "error", "Sales_May_2019.csv"), dst)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
}

func TestUniquePathAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.1.csv"), nil, 0644))

	got, err := UniquePath(dir, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.2.csv"), got)
}
