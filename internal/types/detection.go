package types

import "image"

// Detection represents one object found in a frame.
// Box holds pixel coordinates (x1, y1) to (x2, y2).
type Detection struct {
	ClassID    int
	Confidence float32
	Box        image.Rectangle
}
