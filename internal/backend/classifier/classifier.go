// Package classifier wraps a pre-trained ONNX retinopathy grading model and
// the preprocessing that turns a stored image into the tensor it expects.
// The model artifact is opaque; only its input/output contract, described by a
// metadata JSON next to the model file, is relied on.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Metadata describes the calling contract of the model artifact.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageHeight int      `json:"image_height"`
	ImageWidth  int      `json:"image_width"`
}

// TensorLength is the number of float32 values in one input tensor
// (height × width × 3 channels).
func (m Metadata) TensorLength() int {
	return m.ImageHeight * m.ImageWidth * 3
}

// Result is one classification: the arg-max class, its score, and the full
// per-class score vector.
type Result struct {
	Class      string             `json:"class"`
	Confidence float32            `json:"confidence"`
	Scores     map[string]float32 `json:"scores"`
}

// Service is the classification contract consumed by the core service.
// Implementations may take seconds per call and must be safe for concurrent
// use.
type Service interface {
	Classify(ctx context.Context, tensor []float32) (*Result, error)
	Meta() Metadata
	Close()
}

// ONNXClassifier runs inference through onnxruntime with pre-allocated
// input/output tensors. The tensors are shared across calls, so a mutex
// serializes inference.
type ONNXClassifier struct {
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXClassifier loads the model artifact and its metadata. Loading happens
// here, during explicit startup, never as an import side effect; a missing or
// incompatible artifact fails construction with a descriptive error.
func NewONNXClassifier(modelPath, metadataPath string) (*ONNXClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model artifact not found at %s: %w", modelPath, err)
	}

	metadata, err := loadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	return &ONNXClassifier{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func loadMetadata(metadataPath string) (Metadata, error) {
	var metadata Metadata

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return metadata, fmt.Errorf("failed to read model metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse model metadata: %w", err)
	}

	if len(metadata.Classes) == 0 {
		return metadata, fmt.Errorf("model metadata %s lists no classes", metadataPath)
	}
	if metadata.ImageHeight <= 0 || metadata.ImageWidth <= 0 {
		return metadata, fmt.Errorf("model metadata %s has invalid image dimensions %dx%d",
			metadataPath, metadata.ImageHeight, metadata.ImageWidth)
	}

	return metadata, nil
}

func (c *ONNXClassifier) Meta() Metadata {
	return c.metadata
}

// Classify runs one inference. The session run itself cannot be interrupted;
// when the context expires first, Classify returns the context error while the
// run finishes in the background still holding the mutex, so a subsequent call
// never races on the shared tensors.
func (c *ONNXClassifier) Classify(ctx context.Context, tensor []float32) (*Result, error) {
	if expected := c.metadata.TensorLength(); len(tensor) != expected {
		return nil, fmt.Errorf("expected tensor of %d values, got %d", expected, len(tensor))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type runResult struct {
		scores []float32
		err    error
	}
	done := make(chan runResult, 1)

	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		copy(c.inputTensor.GetData(), tensor)
		if err := c.session.Run(); err != nil {
			done <- runResult{err: fmt.Errorf("inference failed: %w", err)}
			return
		}
		scores := make([]float32, len(c.outputTensor.GetData()))
		copy(scores, c.outputTensor.GetData())
		done <- runResult{scores: scores}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-done:
		if result.err != nil {
			return nil, result.err
		}
		return decodeScores(result.scores, c.metadata.Classes)
	}
}

func (c *ONNXClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// decodeScores picks the arg-max class from a raw score vector. Scores beyond
// the class list (padding in the output tensor) are ignored.
func decodeScores(scores []float32, classes []string) (*Result, error) {
	if len(scores) < len(classes) {
		return nil, fmt.Errorf("expected at least %d scores, got %d", len(classes), len(scores))
	}

	maxIdx := 0
	maxVal := scores[0]
	perClass := make(map[string]float32, len(classes))

	for i, class := range classes {
		perClass[class] = scores[i]
		if scores[i] > maxVal {
			maxVal = scores[i]
			maxIdx = i
		}
	}

	return &Result{
		Class:      classes[maxIdx],
		Confidence: maxVal,
		Scores:     perClass,
	}, nil
}
