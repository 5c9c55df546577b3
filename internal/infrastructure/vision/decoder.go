//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// GoCVDecoder декодирует снимок через OpenCV.
type GoCVDecoder struct {
	MaxSide int
}

// NewDecoder создаёт декодер. maxSide > 0 включает уменьшение больших снимков.
func NewDecoder(maxSide int) *GoCVDecoder {
	return &GoCVDecoder{MaxSide: maxSide}
}

// DecodeRGB декодирует байты в RGB-растр.
func (d *GoCVDecoder) DecodeRGB(data []byte) (*entity.Raster, error) {
	mat, err := decodeToMat(data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = mat.Close() }()

	// Маммограммы бывают очень большими, уменьшаем по длинной стороне.
	if d.MaxSide > 0 && (mat.Cols() > d.MaxSide || mat.Rows() > d.MaxSide) {
		w, h := fitSide(mat.Cols(), mat.Rows(), d.MaxSide)
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
		_ = mat.Close()
		mat = resized
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	pix, err := rgb.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	return &entity.Raster{
		Width:  rgb.Cols(),
		Height: rgb.Rows(),
		Pix:    append([]byte(nil), pix...),
	}, nil
}

func decodeToMat(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}

var _ port.ImageDecoder = (*GoCVDecoder)(nil)
