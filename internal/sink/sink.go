// Package sink renders frames to physical and virtual displays.
package sink

import (
	"errors"
	"image"
	"log"
	"os"
	"sync"

	"github.com/creatorstation/radarlcd/pkg/convert/img"
)

// Renderer is implemented by every sink.
type Renderer interface {
	Render(image []byte, progress *float64) error
}

// compose decodes data, fits it to the display and overlays the progress bar.
func compose(data []byte, progress *float64, width, height int) (*image.RGBA, error) {
	src, err := img.Decode(data)
	if err != nil {
		return nil, err
	}
	dst := img.Fit(src, width, height)
	if progress != nil {
		img.DrawProgress(dst, *progress)
	}
	return dst, nil
}

// Framebuffer writes frames to a linux RGB565 framebuffer device, such as
// the /dev/fbN node the fbtft driver creates for an ILI9341 panel.
type Framebuffer struct {
	path   string
	width  int
	height int

	mu sync.Mutex
}

func NewFramebuffer(path string, width, height int) *Framebuffer {
	return &Framebuffer{path: path, width: width, height: height}
}

func (f *Framebuffer) Render(data []byte, progress *float64) error {
	frame, err := compose(data, progress, f.width, f.height)
	if err != nil {
		return err
	}
	pixels := img.RGB565(frame)

	f.mu.Lock()
	defer f.mu.Unlock()

	fb, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := fb.WriteAt(pixels, 0); err != nil {
		fb.Close()
		return err
	}
	return fb.Close()
}

// Web keeps the last rendered frame as PNG for the HTTP surface.
type Web struct {
	width  int
	height int

	mu       sync.RWMutex
	png      []byte
	progress *float64
}

func NewWeb(width, height int) *Web {
	return &Web{width: width, height: height}
}

func (w *Web) Render(data []byte, progress *float64) error {
	frame, err := compose(data, progress, w.width, w.height)
	if err != nil {
		return err
	}
	out, err := img.EncodePNG(frame)
	if err != nil {
		return err
	}

	var p *float64
	if progress != nil {
		v := *progress
		p = &v
	}

	w.mu.Lock()
	w.png, w.progress = out, p
	w.mu.Unlock()
	return nil
}

// Frame returns the last rendered PNG and its progress annotation, or false
// before the first render.
func (w *Web) Frame() ([]byte, *float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.png, w.progress, w.png != nil
}

// Multi renders to every sink, returning the joined errors.
type Multi []Renderer

func (m Multi) Render(data []byte, progress *float64) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(data, progress); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log renders nothing and notes each render; it stands in for a headless host.
type Log struct {
	Logger *log.Logger
}

func (l Log) Render(data []byte, progress *float64) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	if progress != nil {
		logger.Printf("Render %d bytes at %.0f%%", len(data), *progress*100)
	} else {
		logger.Printf("Render %d bytes", len(data))
	}
	return nil
}
