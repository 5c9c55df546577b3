package vision

import (
	"bytes"
	"errors"
	"image/jpeg"

	"mammo-report/internal/domain/entity"
)

// EncodeJPEG кодирует растр в JPEG для передачи удалённой модели.
func EncodeJPEG(r *entity.Raster, quality int) ([]byte, error) {
	if r == nil || r.Width == 0 || r.Height == 0 || len(r.Pix) < r.Width*r.Height*3 {
		return nil, errors.New("invalid raster")
	}
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, r.Image(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fitSide(w, h, maxSide int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	scale := float64(maxSide) / float64(longest)
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
