// internal/snapshot/screen.go
package snapshot

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/web-traces/wlprep/pkg/models"
)

// ProbeScreen reads the pixel dimensions of the screenshot recorded with a
// page. Only the header is decoded, so probing stays cheap even for large
// captures. Recordings use PNG; JPEG and WebP headers are also understood.
func ProbeScreen(path string) (models.Screen, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Screen{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return models.Screen{}, err
	}
	return models.Screen{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}
