package scanner

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder ищет QR-код в RGBA-буфере. Не должен паниковать на мусоре.
type Decoder func(pixels []byte, width, height int) (payload string, ok bool)

// DecodeQR: Decoder на базе gozxing.
func DecodeQR(pixels []byte, width, height int) (payload string, ok bool) {
	defer func() {
		if recover() != nil {
			payload, ok = "", false
		}
	}()

	if width <= 0 || height <= 0 || len(pixels) < width*height*4 {
		return "", false
	}

	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", false
	}
	return result.GetText(), true
}
