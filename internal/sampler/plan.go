package sampler

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var (
	// ErrInvalidVideoMetadata is returned when the source frame rate cannot drive sampling
	ErrInvalidVideoMetadata = errors.New("invalid video metadata")
	// ErrInvalidSampleRate is returned when the target rate yields no positive frame interval
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// Plan describes which native frames of a time window get sampled.
// EndFrame is inclusive. A plan whose StartFrame is past EndFrame yields no samples.
type Plan struct {
	FrameRate  float64
	StartFrame int
	EndFrame   int
	Interval   int

	perSecond int
}

// Sample is one frame selected for detection along with its output bucket
type Sample struct {
	Frame int
	Key   SampleKey
}

// NewPlan builds the sampling plan for [startSec, endSec] of a video running at frameRate
// with targetRate samples per second.
func NewPlan(frameRate float64, startSec, endSec, targetRate int) (Plan, error) {
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return Plan{}, fmt.Errorf("%w: frame rate %v", ErrInvalidVideoMetadata, frameRate)
	}
	if targetRate <= 0 {
		return Plan{}, fmt.Errorf("%w: target rate %d must be positive", ErrInvalidSampleRate, targetRate)
	}

	interval := int(frameRate / float64(targetRate))
	if interval < 1 {
		return Plan{}, fmt.Errorf("%w: target rate %d exceeds video frame rate %v",
			ErrInvalidSampleRate, targetRate, frameRate)
	}

	return Plan{
		FrameRate:  frameRate,
		StartFrame: int(math.Floor(float64(startSec) * frameRate)),
		EndFrame:   int(math.Floor(float64(endSec) * frameRate)),
		Interval:   interval,
		perSecond:  int(frameRate),
	}, nil
}

// Sampled reports whether native frame f is selected. It is the predicate form of
// Samples, for callers that walk every decoded frame instead of jumping between samples.
func (p Plan) Sampled(f int) bool {
	if f < p.StartFrame || f > p.EndFrame {
		return false
	}
	return (f-p.StartFrame)%p.Interval == 0
}

// Past reports whether frame f lies beyond the window, which ends a frame-by-frame walk
// driven by Sampled
func (p Plan) Past(f int) bool {
	return f > p.EndFrame
}

// Key returns the output bucket for frame f
func (p Plan) Key(f int) SampleKey {
	rel := f - p.StartFrame
	return SampleKey{
		Second: rel / p.perSecond,
		Frame:  rel % p.perSecond / p.Interval,
	}
}

// Len returns the number of samples the plan yields
func (p Plan) Len() int {
	if p.StartFrame > p.EndFrame {
		return 0
	}
	return (p.EndFrame-p.StartFrame)/p.Interval + 1
}

// Samples yields every sampled frame in increasing order.
// Ranging over it again restarts from the first sample.
func (p Plan) Samples() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for f := p.StartFrame; f <= p.EndFrame; f += p.Interval {
			if !yield(Sample{Frame: f, Key: p.Key(f)}) {
				return
			}
		}
	}
}
