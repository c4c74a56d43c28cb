package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

var initOnce sync.Once

// EnsureEnvironment locates the ONNX Runtime shared library and initializes
// the runtime environment. Safe to call from multiple components; the
// environment is set up at most once per process.
func EnsureEnvironment() error {
	var initErr error
	initOnce.Do(func() {
		if err := setLibraryPath(); err != nil {
			initErr = err
			return
		}
		if !onnxrt.IsInitialized() {
			if err := onnxrt.InitializeEnvironment(); err != nil {
				initErr = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
			}
		}
	})
	return initErr
}

// NewSession opens a dynamic session for the model at path, verifying that it
// has exactly one input and one output.
func NewSession(modelPath string, numThreads int) (*onnxrt.DynamicAdvancedSession, onnxrt.InputOutputInfo, onnxrt.InputOutputInfo, error) {
	var none onnxrt.InputOutputInfo

	if err := EnsureEnvironment(); err != nil {
		return nil, none, none, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, none, none, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, none, none, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return nil, none, none, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, none, none, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying session options: %v\n", err)
		}
	}()

	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			return nil, none, none, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, none, none, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, inputs[0], outputs[0], nil
}

// setLibraryPath points onnxruntime_go at the shared library, checking system
// locations first and falling back to a project-relative bundle.
func setLibraryPath() error {
	if path := findSystemLibraryPath(); path != "" {
		onnxrt.SetSharedLibraryPath(path)
		return nil
	}

	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := libraryName()
	if err != nil {
		return err
	}
	libPath := filepath.Join(root, "onnxruntime", "lib", libName)
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	onnxrt.SetSharedLibraryPath(libPath)
	return nil
}

func findSystemLibraryPath() string {
	systemPaths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	for _, p := range systemPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	root := cwd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}
