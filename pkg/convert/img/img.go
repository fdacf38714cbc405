package img

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/sunshineplan/imgconv"
)

const (
	// ProgressBarHeight and ProgressBarWidth size the bar drawn along the
	// bottom edge of a frame in a sequence sweep.
	ProgressBarHeight = 5
	ProgressBarWidth  = 280
)

// Decode decodes any format imgconv understands (JPEG, PNG, GIF, BMP, TIFF, WEBP).
func Decode(data []byte) (image.Image, error) {
	src, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %v", err)
	}
	return src, nil
}

// ToPNG re-encodes an image in any supported format as PNG.
func ToPNG(data []byte) ([]byte, error) {
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(src)
}

func EncodePNG(src image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, src, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return nil, fmt.Errorf("error encoding PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// Fit scales src to exactly width x height.
func Fit(src image.Image, width, height int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() != width || b.Dy() != height {
		src = imgconv.Resize(src, &imgconv.ResizeOption{Width: width, Height: height})
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// DrawProgress paints a progress bar along the bottom of dst: a black track
// with a white fill proportional to progress in [0, 1].
func DrawProgress(dst *image.RGBA, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	b := dst.Bounds()
	width := ProgressBarWidth
	if width > b.Dx() {
		width = b.Dx()
	}
	top := b.Max.Y - ProgressBarHeight
	if top < b.Min.Y {
		top = b.Min.Y
	}

	track := image.Rect(b.Min.X, top, b.Min.X+width, b.Max.Y)
	draw.Draw(dst, track, image.NewUniform(color.Black), image.Point{}, draw.Src)

	fill := track
	fill.Max.X = b.Min.X + int(float64(width)*progress)
	draw.Draw(dst, fill, image.NewUniform(color.White), image.Point{}, draw.Src)
}

// Solid returns a width x height image of a single color.
func Solid(width, height int, c color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return dst
}

// RGB565 packs src into the little-endian 16-bit layout used by SPI TFT
// framebuffers such as the ILI9341.
func RGB565(src *image.RGBA) []byte {
	b := src.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*2)
	var px [2]byte
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBAAt(x, y)
			v := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
			binary.LittleEndian.PutUint16(px[:], v)
			out = append(out, px[0], px[1])
		}
	}
	return out
}
