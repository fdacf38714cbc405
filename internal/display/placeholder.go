package display

import (
	"image/color"
	"log"
	"os"

	"github.com/creatorstation/radarlcd/pkg/convert/img"
)

// Placeholders are the stand-in images shown before the first frame is
// ready and in place of a frame whose artifact is missing.
type Placeholders struct {
	NotReady []byte
	Error    []byte
}

var (
	notReadyColor = color.RGBA{64, 64, 64, 255}
	errorColor    = color.RGBA{160, 0, 0, 255}
)

// LoadPlaceholders reads the placeholder images from disk. A placeholder
// that cannot be read is replaced by a solid image of the given size.
func LoadPlaceholders(notReadyPath, errorPath string, width, height int) Placeholders {
	return Placeholders{
		NotReady: loadPlaceholder(notReadyPath, width, height, notReadyColor),
		Error:    loadPlaceholder(errorPath, width, height, errorColor),
	}
}

func loadPlaceholder(path string, width, height int, fallback color.Color) []byte {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
		log.Printf("Error reading placeholder %s, using a solid image: %v", path, err)
	}
	data, err := img.EncodePNG(img.Solid(width, height, fallback))
	if err != nil {
		log.Printf("Error encoding placeholder: %v", err)
	}
	return data
}
