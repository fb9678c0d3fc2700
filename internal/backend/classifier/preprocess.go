package classifier

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/nfnt/resize"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jo-hoe/retiscan/internal/common"
)

// Prepare decodes a stored image and converts it into the model's input
// tensor: a Lanczos3 resize to exactly height × width (aspect ratio is not
// preserved; retinal photographs are close to square and the model was
// trained on stretched inputs), then channel values scaled to [0,1] float32
// in HWC order.
func Prepare(path string, metadata Metadata) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, common.ErrDecode)
	}
	return PrepareBytes(data, metadata)
}

// PrepareBytes is Prepare for in-memory image content.
func PrepareBytes(data []byte, metadata Metadata) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, common.ErrDecode)
	}

	resized := resize.Resize(uint(metadata.ImageWidth), uint(metadata.ImageHeight), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	tensor := make([]float32, metadata.TensorLength())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := (y*width + x) * 3
			tensor[idx] = float32(r) / 65535.0
			tensor[idx+1] = float32(g) / 65535.0
			tensor[idx+2] = float32(b) / 65535.0
		}
	}

	return tensor, nil
}
