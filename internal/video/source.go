package video

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/melody-ding/go-vidcrop/internal/types"
)

// ErrOpen is returned when a video cannot be opened for decoding
var ErrOpen = errors.New("error opening video")

// Source decodes a video sequentially, one frame per call.
// Next and Skip return io.EOF once the stream is exhausted. The image returned by Next
// is only valid until the following Next or Skip.
type Source interface {
	Metadata() types.VideoMetadata
	Next() (image.Image, error)
	Skip() error
	Close() error
}

// Open picks a decoder for path. MPEG-1 program streams are decoded in-process,
// everything else goes through ffmpeg.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w %s: is a directory", ErrOpen, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mpg", ".mpeg":
		return OpenMPEG(path)
	default:
		return OpenFFmpeg(path)
	}
}
