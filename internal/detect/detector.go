package detect

import (
	"context"
	"image"

	"github.com/melody-ding/go-vidcrop/internal/types"
)

// Detector runs an object detection model on single frames
type Detector interface {
	// Detect returns every object the model finds in frame
	Detect(ctx context.Context, frame image.Image) ([]types.Detection, error)

	// Label resolves a class id to the model's class name
	Label(classID int) string

	// Close releases the model
	Close() error
}
