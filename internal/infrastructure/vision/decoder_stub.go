//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// GoCVDecoder декодирует JPEG и PNG без OpenCV.
type GoCVDecoder struct {
	MaxSide int
}

// NewDecoder создаёт декодер. maxSide > 0 включает уменьшение больших снимков.
func NewDecoder(maxSide int) *GoCVDecoder {
	return &GoCVDecoder{MaxSide: maxSide}
}

// DecodeRGB декодирует байты в RGB-растр.
func (d *GoCVDecoder) DecodeRGB(data []byte) (*entity.Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("failed to decode image: empty image")
	}
	if d.MaxSide > 0 && (w > d.MaxSide || h > d.MaxSide) {
		w, h = fitSide(w, h, d.MaxSide)
	}

	// Ближайший сосед: при w == Dx() отображение тождественное.
	pix := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*b.Dx()/w
			r, g, bl, _ := img.At(sx, sy).RGBA()
			pix = append(pix, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}

	return &entity.Raster{Width: w, Height: h, Pix: pix}, nil
}

var _ port.ImageDecoder = (*GoCVDecoder)(nil)
