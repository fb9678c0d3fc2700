// Package storage persists uploaded retinal images on the local filesystem
// under a managed root directory and serves bounded PNG thumbnails for the
// history view.
package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jo-hoe/retiscan/internal/common"
)

const thumbnailDirName = "thumbs"

type ImageStore struct {
	root             string
	thumbnailMaxEdge int
}

// NewImageStore prepares the storage root and its thumbnail cache directory.
func NewImageStore(root string, thumbnailMaxEdge int) (*ImageStore, error) {
	if thumbnailMaxEdge <= 0 {
		return nil, fmt.Errorf("thumbnail max edge must be positive, got %d", thumbnailMaxEdge)
	}
	if err := os.MkdirAll(filepath.Join(root, thumbnailDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %v: %w", root, err, common.ErrStorage)
	}
	return &ImageStore{
		root:             root,
		thumbnailMaxEdge: thumbnailMaxEdge,
	}, nil
}

// Store writes uploaded content under the managed root and returns its path.
// File names combine a UTC timestamp with a random suffix, so concurrent
// uploads of identical content never collide; no deduplication is attempted.
func (s *ImageStore) Store(data []byte, suggestedName string) (string, error) {
	name := fmt.Sprintf("%s_%s%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		sanitizedExtension(suggestedName),
	)
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("failed to write uploaded image", "path", path, "error", err)
		return "", fmt.Errorf("write %s: %v: %w", path, err, common.ErrStorage)
	}

	slog.Info("stored uploaded image", "path", path, "size_bytes", len(data))
	return path, nil
}

// Read returns the raw bytes of a previously stored image. Paths outside the
// storage root are rejected.
func (s *ImageStore) Read(path string) ([]byte, error) {
	if err := s.ensureManaged(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, common.ErrStorage)
	}
	return data, nil
}

// Remove deletes a stored image, e.g. when a later workflow stage failed and
// no prediction record references it. Removing a missing file is a no-op.
func (s *ImageStore) Remove(path string) error {
	if err := s.ensureManaged(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %v: %w", path, err, common.ErrStorage)
	}
	return nil
}

// Thumbnail returns a PNG thumbnail of a stored image whose longest edge is
// bounded by the configured maximum. Thumbnails are cached next to the
// originals; a cache miss decodes and scales on demand.
func (s *ImageStore) Thumbnail(path string) ([]byte, error) {
	if err := s.ensureManaged(path); err != nil {
		return nil, err
	}

	cachePath := filepath.Join(s.root, thumbnailDirName, filepath.Base(path)+".png")
	if cached, err := os.ReadFile(cachePath); err == nil {
		return cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, common.ErrStorage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", path, err, common.ErrDecode)
	}

	scaled := scaleToFit(img, s.thumbnailMaxEdge)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode thumbnail for %s: %v: %w", path, err, common.ErrStorage)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
		// Cache write failures only cost a re-scale on the next request
		slog.Warn("failed to cache thumbnail", "path", cachePath, "error", err)
	}

	return buf.Bytes(), nil
}

func (s *ImageStore) ensureManaged(path string) error {
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return fmt.Errorf("resolve storage root: %v: %w", err, common.ErrStorage)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %v: %w", path, err, common.ErrStorage)
	}
	if !strings.HasPrefix(pathAbs, rootAbs+string(os.PathSeparator)) {
		return fmt.Errorf("path %s is outside the storage root: %w", path, common.ErrStorage)
	}
	return nil
}

// scaleToFit shrinks an image so its longest edge equals maxEdge, preserving
// aspect ratio. Images already within bounds are returned unchanged.
func scaleToFit(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxEdge && height <= maxEdge {
		return img
	}

	targetWidth, targetHeight := maxEdge, maxEdge
	if width > height {
		targetHeight = height * maxEdge / width
	} else {
		targetWidth = width * maxEdge / height
	}
	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// sanitizedExtension keeps a short alphanumeric file extension from the
// client-suggested name and discards everything else.
func sanitizedExtension(suggestedName string) string {
	ext := strings.ToLower(filepath.Ext(suggestedName))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
