package detector

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/moneyocr/moneyocr/internal/onnx"
)

// ImageNet statistics used by PaddleOCR detection preprocessing.
var (
	detMean = [3]float32{0.485, 0.456, 0.406}
	detStd  = [3]float32{0.229, 0.224, 0.225}
)

// onnxEngine runs a DB-style detection model through ONNX Runtime.
type onnxEngine struct {
	config     Config
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
}

func newONNXEngine(config Config) (*onnxEngine, error) {
	session, in, out, err := onnx.NewSession(config.ModelPath, config.NumThreads)
	if err != nil {
		return nil, err
	}
	return &onnxEngine{config: config, session: session, inputInfo: in, outputInfo: out}, nil
}

func (e *onnxEngine) Close() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying detection session: %v\n", err)
		}
		e.session = nil
	}
	return nil
}

// Predict resizes the image for the model, runs inference and converts the
// probability map into bounding polygons in source-image coordinates.
func (e *onnxEngine) Predict(img image.Image) (Result, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	resized, inW, inH := resizeForDetection(img, e.config.MaxSideLen)

	data := onnx.ImageToCHW(resized, detMean, detStd)
	tensor, err := onnx.NewImageTensor(data, 3, inH, inW)
	if err != nil {
		return Result{}, err
	}

	probMap, mapW, mapH, err := e.run(tensor)
	if err != nil {
		return Result{}, err
	}

	boxes := probabilityMapToBoxes(probMap, mapW, mapH, e.config)

	// Map box coordinates from probability-map space back to source space.
	scaleX := float64(origW) / float64(mapW)
	scaleY := float64(origH) / float64(mapH)
	out := Result{Confidences: make([]float64, 0, len(boxes))}
	for _, b := range boxes {
		out.Polys = append(out.Polys, b.quad(scaleX, scaleY))
		out.Confidences = append(out.Confidences, b.score)
	}
	return out, nil
}

// run executes the session and returns the single-channel probability map.
func (e *onnxEngine) run(tensor onnx.Tensor) ([]float32, int, int, error) {
	inputTensor, err := onnxrt.NewTensor(onnxrt.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := e.session.Run([]onnxrt.Value{inputTensor}, outputs); err != nil {
		return nil, 0, 0, fmt.Errorf("inference failed: %w", err)
	}
	outputTensor := outputs[0]
	defer func() {
		if err := outputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
		}
	}()

	floatTensor, ok := outputTensor.(*onnxrt.Tensor[float32])
	if !ok {
		return nil, 0, 0, fmt.Errorf("expected float32 tensor, got %T", outputTensor)
	}

	shape := outputTensor.GetShape()
	if len(shape) != 4 {
		return nil, 0, 0, fmt.Errorf("expected 4D output tensor, got %dD", len(shape))
	}
	w := int(shape[3])
	h := int(shape[2])

	// Copy out before the tensor is destroyed.
	src := floatTensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	return data, w, h, nil
}

// resizeForDetection scales the image so its longer side is at most maxSide
// and both dimensions are multiples of 32, as the model requires.
func resizeForDetection(img image.Image, maxSide int) (image.Image, int, int) {
	if maxSide <= 0 {
		maxSide = 960
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	longer := w
	if h > longer {
		longer = h
	}
	if longer > maxSide {
		scale = float64(maxSide) / float64(longer)
	}

	newW := roundTo32(int(float64(w) * scale))
	newH := roundTo32(int(float64(h) * scale))
	if newW == w && newH == h {
		return img, w, h
	}
	return imaging.Resize(img, newW, newH, imaging.Lanczos), newW, newH
}

func roundTo32(v int) int {
	v = (v / 32) * 32
	if v < 32 {
		v = 32
	}
	return v
}
