package classifier

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeScores(t *testing.T) {
	classes := []string{"Mild", "Moderate", "Severe", "Proliferative DR"}

	tests := []struct {
		name           string
		scores         []float32
		wantClass      string
		wantConfidence float32
	}{
		{
			name:           "First class wins",
			scores:         []float32{0.7, 0.1, 0.1, 0.1},
			wantClass:      "Mild",
			wantConfidence: 0.7,
		},
		{
			name:           "Last class wins",
			scores:         []float32{0.05, 0.05, 0.1, 0.8},
			wantClass:      "Proliferative DR",
			wantConfidence: 0.8,
		},
		{
			name:           "Tie keeps first occurrence",
			scores:         []float32{0.4, 0.4, 0.1, 0.1},
			wantClass:      "Mild",
			wantConfidence: 0.4,
		},
		{
			name:           "Padding scores beyond class list ignored",
			scores:         []float32{0.1, 0.6, 0.2, 0.1, 0.99},
			wantClass:      "Moderate",
			wantConfidence: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeScores(tt.scores, classes)
			if err != nil {
				t.Fatalf("decodeScores error: %v", err)
			}
			if result.Class != tt.wantClass {
				t.Errorf("expected class %q, got %q", tt.wantClass, result.Class)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("expected confidence %v, got %v", tt.wantConfidence, result.Confidence)
			}
			// Confidence must equal the score recorded for the chosen class
			if result.Scores[result.Class] != result.Confidence {
				t.Errorf("confidence %v does not match score %v for class %q",
					result.Confidence, result.Scores[result.Class], result.Class)
			}
			if len(result.Scores) != len(classes) {
				t.Errorf("expected %d per-class scores, got %d", len(classes), len(result.Scores))
			}
		})
	}
}

func TestDecodeScores_TooFewScores(t *testing.T) {
	_, err := decodeScores([]float32{0.5}, []string{"Mild", "Moderate"})
	if err == nil {
		t.Fatalf("expected error for short score vector, got nil")
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	content := `{
		"input_shape": [1, 150, 150, 3],
		"output_shape": [1, 4],
		"classes": ["Mild", "Moderate", "Severe", "Proliferative DR"],
		"image_height": 150,
		"image_width": 150
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	metadata, err := loadMetadata(path)
	if err != nil {
		t.Fatalf("loadMetadata error: %v", err)
	}
	if len(metadata.Classes) != 4 {
		t.Errorf("expected 4 classes, got %d", len(metadata.Classes))
	}
	if metadata.TensorLength() != 150*150*3 {
		t.Errorf("expected tensor length %d, got %d", 150*150*3, metadata.TensorLength())
	}
}

func TestLoadMetadata_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "Not JSON", content: "not json"},
		{name: "No classes", content: `{"image_height": 150, "image_width": 150}`},
		{name: "Bad dimensions", content: `{"classes": ["a"], "image_height": 0, "image_width": 150}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile error: %v", err)
			}
			if _, err := loadMetadata(path); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestNewONNXClassifier_MissingArtifact(t *testing.T) {
	_, err := NewONNXClassifier(filepath.Join(t.TempDir(), "missing.onnx"), "irrelevant.json")
	if err == nil {
		t.Fatalf("expected error for missing model artifact, got nil")
	}
}
