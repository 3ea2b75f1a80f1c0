package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the work done by one extraction run
type Metrics struct {
	Registry *prometheus.Registry

	FramesSampled  prometheus.Counter
	CropsSaved     prometheus.Counter
	CropsSkipped   prometheus.Counter
	DetectDuration prometheus.Histogram
}

// New registers the run metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FramesSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidcrop_frames_sampled_total",
			Help: "Total number of frames sent to the detection model",
		}),
		CropsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidcrop_crops_saved_total",
			Help: "Total number of crops written to disk",
		}),
		CropsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidcrop_crops_skipped_total",
			Help: "Target detections whose box fell outside the frame",
		}),
		DetectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidcrop_detect_duration_seconds",
			Help:    "Duration of detection model calls",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(m.FramesSampled, m.CropsSaved, m.CropsSkipped, m.DetectDuration)
	return m
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
