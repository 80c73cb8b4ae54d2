package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Registered decoders for Probe.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo is the header information of an image file.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Probe decodes only the image header, which is enough to reject truncated or
// mislabeled files before a job is created for them.
func Probe(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return ImageInfo{}, fmt.Errorf("decoding %s: empty image", path)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// FilterReadable drops image names in dir that Probe rejects. Non-image names
// (videos) are kept untouched. The rejected names are returned separately.
func FilterReadable(dir string, names []string) (kept, rejected []string) {
	for _, name := range names {
		if KindOf(name) != KindImage {
			kept = append(kept, name)
			continue
		}
		if _, err := Probe(filepath.Join(dir, name)); err != nil {
			rejected = append(rejected, name)
			continue
		}
		kept = append(kept, name)
	}
	return kept, rejected
}
