package entity

import (
	"image"
	"image/color"
)

// Raster — декодированное изображение в упакованном виде RGB (3 байта на пиксель).
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// Image возвращает растр как image.Image для последующего кодирования.
func (r *Raster) Image() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := (y*r.Width + x) * 3
			img.SetRGBA(x, y, color.RGBA{R: r.Pix[i], G: r.Pix[i+1], B: r.Pix[i+2], A: 255})
		}
	}
	return img
}
