package port

import "mammo-report/internal/domain/entity"

// ImageDecoder декодирует байты снимка в RGB-растр.
type ImageDecoder interface {
	DecodeRGB(data []byte) (*entity.Raster, error)
}
