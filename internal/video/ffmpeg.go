package video

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/melody-ding/go-vidcrop/internal/types"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegSource streams raw RGBA frames out of an ffmpeg process
type FFmpegSource struct {
	meta    types.VideoMetadata
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	scratch []byte
	closed  bool
	exited  bool
	// end is returned by every read once the stream is over
	end     error
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// OpenFFmpeg probes path and starts decoding its first video stream
func OpenFFmpeg(path string) (*FFmpegSource, error) {
	meta, err := probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}

	s := &FFmpegSource{
		meta:    meta,
		scratch: make([]byte, frameSize(meta)),
	}
	if err := s.start(decodeCommand(path, &s.stderr)); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	return s, nil
}

// decodeCommand builds the ffmpeg invocation that writes raw RGBA frames to stdout
func decodeCommand(path string, stderr io.Writer) *exec.Cmd {
	return ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"map":     "0:v:0",
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"vsync":   "0",
		}).
		WithErrorOutput(stderr).
		Silent(true).
		Compile()
}

func (s *FFmpegSource) start(cmd *exec.Cmd) error {
	s.cmd = cmd
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	s.stdout = stdout
	return cmd.Start()
}

// Metadata returns the probed stream properties
func (s *FFmpegSource) Metadata() types.VideoMetadata {
	return s.meta
}

// Next decodes the next frame into a fresh image
func (s *FFmpegSource) Next() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.meta.Width, s.meta.Height))
	if err := s.read(img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// Skip discards the next frame
func (s *FFmpegSource) Skip() error {
	return s.read(s.scratch)
}

func (s *FFmpegSource) read(buf []byte) error {
	if s.closed {
		return io.EOF
	}
	if s.end != nil {
		return s.end
	}
	_, err := io.ReadFull(s.stdout, buf)
	if err == nil {
		return nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("error reading frame: %v", err)
	}

	// stdout is drained, so ffmpeg's exit status tells a clean end from a decode failure
	s.end = io.EOF
	if err := s.wait(); err != nil {
		s.end = fmt.Errorf("ffmpeg: %v: %s", err, stderrTail(s.stderr.String(), 5))
	}
	return s.end
}

func (s *FFmpegSource) wait() error {
	if s.exited {
		return nil
	}
	s.exited = true
	return s.cmd.Wait()
}

// Close stops ffmpeg and waits for it to exit
func (s *FFmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.exited {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

// stderrTail keeps the last n lines of ffmpeg's log
func stderrTail(out string, n int) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func probe(path string) (types.VideoMetadata, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("ffprobe: %v", err)
	}

	var p probeOutput
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("error parsing ffprobe output: %v", err)
	}

	for _, st := range p.Streams {
		if st.CodecType != "video" {
			continue
		}
		if st.Width <= 0 || st.Height <= 0 {
			return types.VideoMetadata{}, fmt.Errorf("invalid frame size %dx%d", st.Width, st.Height)
		}
		rate := parseRate(st.AvgFrameRate)
		if rate == 0 {
			rate = parseRate(st.RFrameRate)
		}
		return types.VideoMetadata{
			Width:     st.Width,
			Height:    st.Height,
			FrameRate: rate,
			Codec:     st.CodecName,
		}, nil
	}
	return types.VideoMetadata{}, fmt.Errorf("no video stream found")
}

// parseRate parses ffprobe rates such as "30000/1001" or "25". Unusable values give 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func frameSize(meta types.VideoMetadata) int {
	return meta.Width * meta.Height * 4
}
