package ort

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the default shared library location.
const LibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	envOnce sync.Once
	envErr  error
)

// SharedLibPath returns the onnxruntime shared library path for the current platform.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if no build is known for this platform.
func SharedLibPath() (string, error) {
	if p := os.Getenv(LibraryEnv); p != "" {
		return p, nil
	}
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library known for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// initEnvironment loads the shared library and initializes the process-wide onnxruntime
// environment. Only the first call has any effect, later calls return its result.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath, envErr = SharedLibPath()
			if envErr != nil {
				return
			}
		}
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
			return
		}
		onnxruntime.SetSharedLibraryPath(libPath)
		envErr = errors.Wrap(onnxruntime.InitializeEnvironment(), "initializing onnxruntime environment")
	})
	return envErr
}
