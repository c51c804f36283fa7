package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLibraryExplicitPath(t *testing.T) {
	cfg := ONNXConfig{LibraryPath: "/nowhere/libonnxruntime.so"}
	assert.Equal(t, "/nowhere/libonnxruntime.so", cfg.ResolveLibrary())
}

func TestSearchLibrary(t *testing.T) {
	empty := t.TempDir()
	linux := t.TempDir()
	darwin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(linux, "libonnxruntime.so"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(darwin, "libonnxruntime.dylib"), nil, 0o644))
	// a directory with the library's name is not a match
	require.NoError(t, os.Mkdir(filepath.Join(empty, "libonnxruntime.so"), 0o755))

	vars := map[string]string{
		"LD_LIBRARY_PATH":   empty + string(os.PathListSeparator) + linux,
		"DYLD_LIBRARY_PATH": darwin,
	}
	getenv := func(k string) string { return vars[k] }

	assert.Equal(t, filepath.Join(linux, "libonnxruntime.so"), searchLibrary("linux", getenv))
	assert.Equal(t, filepath.Join(darwin, "libonnxruntime.dylib"), searchLibrary("darwin", getenv))
}
