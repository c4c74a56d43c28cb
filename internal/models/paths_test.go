package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetModelsDir_ExplicitWins(t *testing.T) {
	t.Setenv(EnvModelsDir, "/env/models")
	assert.Equal(t, "/explicit", GetModelsDir("/explicit"))
}

func TestGetModelsDir_EnvFallback(t *testing.T) {
	t.Setenv(EnvModelsDir, "/env/models")
	assert.Equal(t, "/env/models", GetModelsDir(""))
}

func TestGetModelsDir_ProjectRootDefault(t *testing.T) {
	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestModelPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("/m", DetectionModel), GetDetectionModelPath("/m"))
	assert.Equal(t, filepath.Join("/m", RecognitionModel), GetRecognitionModelPath("/m"))
	assert.Equal(t, filepath.Join("/m", DictionaryKeys), GetDictionaryPath("/m"))
}
