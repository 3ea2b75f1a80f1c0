package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.FramesSampled.Add(5)
	m.CropsSaved.Inc()
	m.DetectDuration.Observe(0.2)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.FramesSampled))

	path := filepath.Join(t.TempDir(), "vidcrop.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vidcrop_frames_sampled_total 5")
	assert.Contains(t, string(data), "vidcrop_crops_saved_total 1")
	assert.Contains(t, string(data), "vidcrop_detect_duration_seconds_count 1")
}

func TestRunsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.CropsSaved.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.CropsSaved))
}
