package crop

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
)

// DefaultQuality matches the JPEG quality OpenCV writes by default
const DefaultQuality = 95

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of frame inside box, clipped to the frame.
// ok is false when nothing of the box lies inside the frame.
func Crop(frame image.Image, box image.Rectangle) (img image.Image, ok bool) {
	r := box.Canon().Intersect(frame.Bounds())
	if r.Empty() {
		return nil, false
	}

	if s, ok := frame.(subImager); ok {
		return s.SubImage(r), true
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, r.Min, draw.Src)
	return dst, true
}

// WriteJPEG encodes img to path, replacing any existing file
func WriteJPEG(path string, img image.Image, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return f.Close()
}
