package recognizer

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/moneyocr/moneyocr/internal/onnx"
)

// PaddleOCR recognition preprocessing scales pixels to [-1, 1].
var (
	recMean = [3]float32{0.5, 0.5, 0.5}
	recStd  = [3]float32{0.5, 0.5, 0.5}
)

// onnxEngine runs a CTC recognition model through ONNX Runtime. Its Predict
// returns the parallel-sequence mapping shape; older engine builds returned
// per-item objects or bare pairs, which decodeSpans still accepts.
type onnxEngine struct {
	config     Config
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
	charset    *Charset
}

func newONNXEngine(config Config) (*onnxEngine, error) {
	charset, err := LoadCharset(config.DictPath)
	if err != nil {
		return nil, err
	}
	session, in, out, err := onnx.NewSession(config.ModelPath, config.NumThreads)
	if err != nil {
		return nil, err
	}
	return &onnxEngine{config: config, session: session, inputInfo: in, outputInfo: out, charset: charset}, nil
}

func (e *onnxEngine) Close() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying recognition session: %v\n", err)
		}
		e.session = nil
	}
	return nil
}

// Predict preprocesses each crop to the model height, batches them at a
// common padded width and greedy-decodes the CTC output.
func (e *onnxEngine) Predict(crops []image.Image) (any, error) {
	if len(crops) == 0 {
		return map[string]any{"rec_texts": []string{}, "rec_scores": []float64{}}, nil
	}

	height := e.config.ImageHeight
	batchW := 0
	prepared := make([]image.Image, len(crops))
	for i, crop := range crops {
		resized := resizeForRecognition(crop, height, e.config.MaxWidth)
		prepared[i] = resized
		if w := resized.Bounds().Dx(); w > batchW {
			batchW = w
		}
	}
	batchW = padWidth(batchW, e.config.PadWidthMultiple)

	planes := make([][]float32, len(prepared))
	for i, img := range prepared {
		padded := padRight(img, batchW, height)
		planes[i] = onnx.ImageToCHW(padded, recMean, recStd)
	}
	tensor, err := onnx.NewBatchImageTensor(planes, 3, height, batchW)
	if err != nil {
		return nil, err
	}

	texts, scores, err := e.run(tensor, len(crops))
	if err != nil {
		return nil, err
	}
	return map[string]any{"rec_texts": texts, "rec_scores": scores}, nil
}

// run executes the session and decodes one (text, score) per batch item.
func (e *onnxEngine) run(tensor onnx.Tensor, batch int) ([]string, []float64, error) {
	inputTensor, err := onnxrt.NewTensor(onnxrt.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := e.session.Run([]onnxrt.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	outputTensor := outputs[0]
	defer func() {
		if err := outputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
		}
	}()

	floatTensor, ok := outputTensor.(*onnxrt.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputTensor)
	}

	shape := outputTensor.GetShape()
	if len(shape) != 3 {
		return nil, nil, fmt.Errorf("expected 3D output tensor [N, T, C], got %dD", len(shape))
	}
	timesteps := int(shape[1])
	numClasses := int(shape[2])
	data := floatTensor.GetData()
	per := timesteps * numClasses
	if len(data) < batch*per {
		return nil, nil, fmt.Errorf("output tensor too small: %d < %d", len(data), batch*per)
	}

	texts := make([]string, batch)
	scores := make([]float64, batch)
	for i := range batch {
		texts[i], scores[i] = greedyCTCDecode(data[i*per:(i+1)*per], timesteps, numClasses, e.charset)
	}
	return texts, scores, nil
}

// resizeForRecognition scales a crop to the target height preserving aspect
// ratio, optionally clamping the resulting width.
func resizeForRecognition(img image.Image, height, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dy() == 0 {
		return imaging.New(1, height, color.White)
	}
	w := int(float64(b.Dx()) * float64(height) / float64(b.Dy()))
	if w < 1 {
		w = 1
	}
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	return imaging.Resize(img, w, height, imaging.Lanczos)
}

func padWidth(w, multiple int) int {
	if w < 1 {
		w = 1
	}
	if multiple <= 1 {
		return w
	}
	if rem := w % multiple; rem != 0 {
		w += multiple - rem
	}
	return w
}

// padRight places the image on a white canvas of the batch dimensions.
func padRight(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	canvas := imaging.New(width, height, color.White)
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}
