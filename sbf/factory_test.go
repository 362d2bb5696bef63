package sbf

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultFileFactoryProducesDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	factory := DefaultFileFactory{Dir: dir}

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path, err := factory.Next()
		require.NoError(t, err)
		require.False(t, seen[path], "factory produced a duplicate path")
		seen[path] = true

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Zero(t, info.Size())
	}
}

func TestScalingFilterWithFileFactoryGrowsOnDisk(t *testing.T) {
	dir := t.TempDir()
	factory := DefaultFileFactory{Dir: dir}

	f, err := New(10, 0.1, 4, 0.9, factory.Next)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 60; i++ {
		_, err := f.Add([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, f.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Equal(t, f.NumLayers(), len(entries), "expected one layer file per layer")
	for _, e := range entries {
		info, err := e.Info()
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}
