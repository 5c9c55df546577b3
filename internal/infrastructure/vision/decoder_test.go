//go:build !gocv

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"mammo-report/internal/domain/entity"
)

func grayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 10)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecoder_GrayscaleToRGB(t *testing.T) {
	raster, err := NewDecoder(0).DecodeRGB(grayPNG(t, 4, 2))
	require.NoError(t, err)
	require.Equal(t, 4, raster.Width)
	require.Equal(t, 2, raster.Height)
	require.Len(t, raster.Pix, 4*2*3)

	// Пиксель (2, 1): серый 20 во всех каналах.
	i := (1*4 + 2) * 3
	require.Equal(t, []byte{20, 20, 20}, raster.Pix[i:i+3])
}

func TestDecoder_Downscale(t *testing.T) {
	raster, err := NewDecoder(10).DecodeRGB(grayPNG(t, 20, 5))
	require.NoError(t, err)
	require.Equal(t, 10, raster.Width)
	require.Equal(t, 2, raster.Height)
	require.Len(t, raster.Pix, 10*2*3)
}

func TestDecoder_InvalidData(t *testing.T) {
	_, err := NewDecoder(0).DecodeRGB([]byte("not an image"))
	require.Error(t, err)
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	raster := &entity.Raster{Width: 2, Height: 2, Pix: bytes.Repeat([]byte{128}, 12)}
	data, err := EncodeJPEG(raster, 0)
	require.NoError(t, err)

	decoded, err := NewDecoder(0).DecodeRGB(data)
	require.NoError(t, err)
	require.Equal(t, 2, decoded.Width)

	_, err = EncodeJPEG(&entity.Raster{Width: 3, Height: 3}, 90)
	require.Error(t, err)
}
