package video

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/gen2brain/mpeg"
	"github.com/melody-ding/go-vidcrop/internal/types"
)

// MPEGSource decodes MPEG-1 video without an external process
type MPEGSource struct {
	file *os.File
	mpg  *mpeg.MPEG
	meta types.VideoMetadata
}

// OpenMPEG opens an MPEG-1 program stream
func OpenMPEG(path string) (*MPEGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}

	mpg, err := mpeg.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	// audio packets would otherwise pile up in the demuxer buffer, nothing reads them
	mpg.SetAudioEnabled(false)

	return &MPEGSource{
		file: f,
		mpg:  mpg,
		meta: types.VideoMetadata{
			Width:     mpg.Width(),
			Height:    mpg.Height(),
			FrameRate: mpg.Framerate(),
			Codec:     "mpeg1video",
		},
	}, nil
}

// Metadata returns the sequence header properties
func (s *MPEGSource) Metadata() types.VideoMetadata {
	return s.meta
}

// Next decodes the next picture. The returned image shares the decoder's buffers.
func (s *MPEGSource) Next() (image.Image, error) {
	for {
		frame := s.mpg.DecodeVideo()
		if frame != nil {
			return frame.YCbCr(), nil
		}
		if s.mpg.HasEnded() {
			return nil, io.EOF
		}
	}
}

// Skip decodes and drops the next picture
func (s *MPEGSource) Skip() error {
	_, err := s.Next()
	return err
}

// Close closes the underlying file
func (s *MPEGSource) Close() error {
	return s.file.Close()
}
