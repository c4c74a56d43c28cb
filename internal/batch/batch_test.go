package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyocr/moneyocr/internal/pipeline"
)

// stubRecognizer fails for any input containing "bad".
type stubRecognizer struct {
	calls int
}

func (s *stubRecognizer) Recognize(ctx context.Context, data []byte) (*pipeline.RecognitionOutcome, error) {
	s.calls++
	if bytes.Contains(data, []byte("bad")) {
		return nil, &pipeline.EngineError{Stage: "recognition", Err: errors.New("unreadable")}
	}
	amount := "12.50"
	raw := "¥12.50"
	return &pipeline.RecognitionOutcome{
		Amount:            &amount,
		AverageConfidence: 0.9,
		RawText:           &raw,
		Warnings:          []string{},
	}, nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestCollectImages(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.png":     "x",
		"a.jpg":     "x",
		"c.TIFF":    "x",
		"notes.txt": "x",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	paths, err := CollectImages(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), paths[0])
	assert.Equal(t, filepath.Join(dir, "c.TIFF"), paths[2])
}

func TestRun_ContinueOnError(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"one.png":   "good",
		"two.png":   "bad image",
		"three.png": "good",
	})
	paths, err := CollectImages(dir)
	require.NoError(t, err)

	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true})
	require.NoError(t, err)

	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 3)

	summary := Summarize(results)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Error(t, results[1].Err)
	var engineErr *pipeline.EngineError
	assert.ErrorAs(t, results[1].Err, &engineErr)
}

func TestRun_StopOnFirstError(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.png": "bad",
		"b.png": "good",
	})
	paths, err := CollectImages(dir)
	require.NoError(t, err)

	rec := &stubRecognizer{}
	p, err := NewProcessor(rec, Options{ContinueOnError: false})
	require.NoError(t, err)

	results, err := p.Run(context.Background(), paths)
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, rec.calls)
}

func TestRun_MissingFileIsolated(t *testing.T) {
	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true})
	require.NoError(t, err)

	results, err := p.Run(context.Background(), []string{filepath.Join(t.TempDir(), "absent.png")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestRun_CanceledContext(t *testing.T) {
	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, []string{"whatever.png"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWrite_Text(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.png": "good", "b.png": "bad"})
	paths, err := CollectImages(dir)
	require.NoError(t, err)

	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true, Format: "text"})
	require.NoError(t, err)
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf, results))
	out := buf.String()
	assert.Contains(t, out, "amount=12.50")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "2 processed, 1 succeeded, 1 failed")
}

func TestWrite_JSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.png": "good"})
	paths, err := CollectImages(dir)
	require.NoError(t, err)

	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true, Format: "json"})
	require.NoError(t, err)
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf, results))

	var items []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, true, items[0]["success"])
}

func TestWrite_CSV(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.png": "good"})
	paths, err := CollectImages(dir)
	require.NoError(t, err)

	p, err := NewProcessor(&stubRecognizer{}, Options{ContinueOnError: true, Format: "csv"})
	require.NoError(t, err)
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf, results))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "file,amount,confidence")
	assert.Contains(t, lines[1], "12.50")
}

func TestNewProcessor_Validation(t *testing.T) {
	_, err := NewProcessor(nil, Options{})
	require.Error(t, err)

	_, err = NewProcessor(&stubRecognizer{}, Options{Format: "xml"})
	require.Error(t, err)
}
