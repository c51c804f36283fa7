package inference

import (
	"os"
	"path/filepath"
	"runtime"
)

// ONNXConfig configures the ONNX Runtime engine.
type ONNXConfig struct {
	// LibraryPath points at libonnxruntime. Empty means search the loader
	// path variables and then the usual install prefixes.
	LibraryPath    string
	IntraOpThreads int
	InterOpThreads int
}

var libraryPrefixes = []string{
	"/usr/lib",
	"/usr/local/lib",
	"/opt/onnxruntime/lib",
	"/opt/homebrew/lib",
}

// libraryName is the shared object name the loader expects on goos.
func libraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// ResolveLibrary returns LibraryPath when set, otherwise the first existing
// libonnxruntime found. An empty result lets onnxruntime_go fall back to its
// own default name.
func (c ONNXConfig) ResolveLibrary() string {
	if c.LibraryPath != "" {
		return c.LibraryPath
	}
	return searchLibrary(runtime.GOOS, os.Getenv)
}

func searchLibrary(goos string, getenv func(string) string) string {
	name := libraryName(goos)
	var dirs []string
	for _, key := range []string{"LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"} {
		dirs = append(dirs, filepath.SplitList(getenv(key))...)
	}
	dirs = append(dirs, libraryPrefixes...)

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
