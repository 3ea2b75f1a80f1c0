package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/melody-ding/go-vidcrop/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestVideo renders a synthetic clip with ffmpeg's lavfi test source
func createTestVideo(t *testing.T, name string, rate int, seconds int, codec string) string {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=64x48:rate=%d:duration=%d", rate, seconds),
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		"-y",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg failed: %v\n%s", err, out)
	}
	return path
}

// createTestMPEGWithAudio renders an MPEG-1 program stream carrying a sine tone next to the picture
func createTestMPEGWithAudio(t *testing.T, seconds int) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}

	path := filepath.Join(t.TempDir(), "clip_audio.mpg")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=64x48:rate=25:duration=%d", seconds),
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%d", seconds),
		"-c:v", "mpeg1video",
		"-c:a", "mp2",
		"-f", "mpeg",
		"-y",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg failed: %v\n%s", err, out)
	}
	return path
}

func countFrames(t *testing.T, src Source) int {
	t.Helper()
	n := 0
	for {
		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		meta := src.Metadata()
		if b := img.Bounds(); b.Dx() != meta.Width || b.Dy() != meta.Height {
			t.Fatalf("frame bounds %v, want %dx%d", b, meta.Width, meta.Height)
		}
		n++
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Open() error = %v, want ErrOpen", err)
	}

	_, err = Open(t.TempDir())
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Open(dir) error = %v, want ErrOpen", err)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"30", 30},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"10/x", 0},
	}

	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFFmpegSource(t *testing.T) {
	path := createTestVideo(t, "clip.mp4", 10, 2, "libx264")

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	meta := src.Metadata()
	if meta.FrameRate != 10 {
		t.Errorf("FrameRate = %v, want 10", meta.FrameRate)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", meta.Width, meta.Height)
	}

	if err := src.Skip(); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if got := countFrames(t, src); got != 19 {
		t.Errorf("decoded %d frames after skip, want 19", got)
	}

	// reads after the end keep reporting EOF
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end error = %v, want io.EOF", err)
	}
}

func TestFFmpegSourceCloseEarly(t *testing.T) {
	path := createTestVideo(t, "clip.mp4", 10, 2, "libx264")

	src, err := OpenFFmpeg(path)
	if err != nil {
		t.Fatalf("OpenFFmpeg() error = %v", err)
	}
	if _, err := src.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after Close error = %v, want io.EOF", err)
	}
}

func TestMPEGSource(t *testing.T) {
	path := createTestVideo(t, "clip.mpg", 25, 1, "mpeg1video")

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if _, ok := src.(*MPEGSource); !ok {
		t.Fatalf("Open() returned %T, want *MPEGSource", src)
	}
	if got := src.Metadata().FrameRate; got != 25 {
		t.Errorf("FrameRate = %v, want 25", got)
	}
	if got := countFrames(t, src); got == 0 {
		t.Error("no frames were decoded")
	}
}

func TestMPEGSourceIgnoresAudio(t *testing.T) {
	path := createTestMPEGWithAudio(t, 2)

	src, err := OpenMPEG(path)
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.mpg.AudioEnabled(), "audio decoding left enabled")
	assert.Equal(t, 25.0, src.Metadata().FrameRate)
	assert.Positive(t, countFrames(t, src))
}

func TestDecodeCommand(t *testing.T) {
	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	cmd := decodeCommand("in.mp4", io.Discard)

	assert.Empty(t, logged.String(), "command line written to the standard logger")
	args := strings.Join(cmd.Args, " ")
	for _, want := range []string{"-i in.mp4", "-map 0:v:0", "-f rawvideo", "-pix_fmt rgba", "-vsync 0", "pipe:"} {
		assert.Contains(t, args, want)
	}
}

func TestFFmpegSourceDecodeFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}

	meta := types.VideoMetadata{Width: 2, Height: 2, FrameRate: 10}
	src := &FFmpegSource{meta: meta, scratch: make([]byte, frameSize(meta))}
	cmd := exec.Command("sh", "-c", "printf 'ffmpeg version x\\nInvalid data found when processing input\\n' >&2; exit 1")
	cmd.Stderr = &src.stderr
	require.NoError(t, src.start(cmd))
	defer src.Close()

	_, err := src.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "Invalid data found when processing input")

	// the failure sticks
	assert.Equal(t, err, src.Skip())
}

func TestFFmpegSourceCleanEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}

	meta := types.VideoMetadata{Width: 1, Height: 1, FrameRate: 10}
	src := &FFmpegSource{meta: meta, scratch: make([]byte, frameSize(meta))}
	cmd := exec.Command("sh", "-c", "printf 'abcd'")
	cmd.Stderr = &src.stderr
	require.NoError(t, src.start(cmd))
	defer src.Close()

	img, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), img.(*image.RGBA).Pix)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, src.Skip(), io.EOF)
}

func TestStderrTail(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"", 3, ""},
		{"one\n", 3, "one"},
		{"a\nb\nc\nd\n", 2, "c | d"},
	}

	for _, tt := range tests {
		if got := stderrTail(tt.in, tt.n); got != tt.want {
			t.Errorf("stderrTail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
