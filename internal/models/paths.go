package models

import (
	"os"
	"path/filepath"
)

// Model name constants to avoid typos and ensure consistency.
const (
	// Detection model (DB-style text region detector).
	DetectionModel = "PP-OCRv5_mobile_det.onnx"

	// Recognition model (CTC text line recognizer).
	RecognitionModel = "PP-OCRv5_mobile_rec.onnx"

	// Character dictionary for CTC decoding.
	DictionaryKeys = "ppocr_keys_v1.txt"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "MONEYOCR_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to the working directory when no go.mod is present
	// (installed binaries resolve relative to cwd).
	return os.Getwd()
}

// GetModelsDir resolves the models directory. Priority: explicit argument,
// MONEYOCR_MODELS_DIR environment variable, then "models" under the project
// root.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	root, err := findProjectRoot()
	if err != nil {
		return DefaultModelsDir
	}
	return filepath.Join(root, DefaultModelsDir)
}

// GetDetectionModelPath returns the path to the detection model.
func GetDetectionModelPath(modelsDir string) string {
	return filepath.Join(GetModelsDir(modelsDir), DetectionModel)
}

// GetRecognitionModelPath returns the path to the recognition model.
func GetRecognitionModelPath(modelsDir string) string {
	return filepath.Join(GetModelsDir(modelsDir), RecognitionModel)
}

// GetDictionaryPath returns the path to the recognition character dictionary.
func GetDictionaryPath(modelsDir string) string {
	return filepath.Join(GetModelsDir(modelsDir), DictionaryKeys)
}
