package scanner

import (
	"image"

	"golang.org/x/image/draw"
)

// Canvas: внеэкранный буфер, в который рисуется текущий кадр превью.
// Буфер переиспользуется между тиками, пока не меняется размер кадра.
type Canvas struct {
	img *image.RGBA
}

// Render копирует кадр в буфер и возвращает его пиксели (RGBA) и размеры.
func (c *Canvas) Render(frame image.Image) ([]byte, int, int) {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}

	if c.img == nil || c.img.Rect.Dx() != w || c.img.Rect.Dy() != h {
		c.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.Draw(c.img, c.img.Rect, frame, b.Min, draw.Src)
	return c.img.Pix, w, h
}

// Reset освобождает буфер.
func (c *Canvas) Reset() {
	c.img = nil
}
