package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/melody-ding/go-vidcrop/internal/crop"
	"github.com/melody-ding/go-vidcrop/internal/detect"
	"github.com/melody-ding/go-vidcrop/internal/metrics"
	"github.com/melody-ding/go-vidcrop/internal/sampler"
	"github.com/melody-ding/go-vidcrop/internal/timecode"
	"github.com/melody-ding/go-vidcrop/internal/types"
	"github.com/melody-ding/go-vidcrop/internal/video"
	"go.uber.org/zap"
)

// Options describes one extraction run
type Options struct {
	VideoPath string
	ModelPath string
	OutputDir string
	// Start and End bound the window as mm:ss or hh:mm:ss
	Start string
	End   string
	// TargetRate is the number of frames examined per second of video, 1 when zero
	TargetRate int
	// TargetClass is matched case-insensitively against model labels, "truck" when empty
	TargetClass string
	JPEGQuality int
}

// VideoOpener opens a video for sequential decoding
type VideoOpener func(path string) (video.Source, error)

// DetectorOpener loads the detection model once per run
type DetectorOpener func(ctx context.Context, modelPath string) (detect.Detector, error)

// Processor extracts crops of one object class from a video window
type Processor struct {
	openVideo    VideoOpener
	openDetector DetectorOpener
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// New creates a Processor that decodes with video.Open
func New(openDetector DetectorOpener, logger *zap.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		openVideo:    video.Open,
		openDetector: openDetector,
		logger:       logger,
		metrics:      m,
	}
}

// WithVideoOpener replaces the decoder used by Process
func (p *Processor) WithVideoOpener(open VideoOpener) *Processor {
	p.openVideo = open
	return p
}

func (o *Options) setDefaults() {
	if o.TargetRate == 0 {
		o.TargetRate = 1
	}
	if o.TargetClass == "" {
		o.TargetClass = "truck"
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = crop.DefaultQuality
	}
}

// Process samples the window, runs detection on each sample and writes every crop of
// the target class under OutputDir/second_<n>/frame_<m>/.
//
// A video that cannot be opened is logged and reported through Result.Completed,
// every other failure is returned.
func (p *Processor) Process(ctx context.Context, opts Options) (types.Result, error) {
	opts.setDefaults()

	startSec, err := timecode.Parse(opts.Start)
	if err != nil {
		return types.Result{}, fmt.Errorf("error parsing start time: %w", err)
	}
	endSec, err := timecode.Parse(opts.End)
	if err != nil {
		return types.Result{}, fmt.Errorf("error parsing end time: %w", err)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return types.Result{}, fmt.Errorf("error creating output directory: %w", err)
	}

	log := p.logger.With(zap.String("run_id", uuid.NewString()))

	log.Info("loading model", zap.String("model", opts.ModelPath))
	det, err := p.openDetector(ctx, opts.ModelPath)
	if err != nil {
		return types.Result{}, fmt.Errorf("error loading model: %w", err)
	}
	defer det.Close()

	log.Info("opening video", zap.String("video", opts.VideoPath))
	src, err := p.openVideo(opts.VideoPath)
	if errors.Is(err, video.ErrOpen) {
		log.Error("error opening video file", zap.Error(err))
		return types.Result{}, nil
	}
	if err != nil {
		return types.Result{}, err
	}
	defer src.Close()

	meta := src.Metadata()
	plan, err := sampler.NewPlan(meta.FrameRate, startSec, endSec, opts.TargetRate)
	if err != nil {
		return types.Result{}, err
	}

	log.Info("starting extraction",
		zap.String("from", timecode.Format(startSec)),
		zap.String("to", timecode.Format(endSec)),
		zap.Int("target_fps", opts.TargetRate),
		zap.Float64("video_fps", meta.FrameRate),
		zap.Int("frame_interval", plan.Interval),
		zap.Int("samples", plan.Len()),
	)

	res := types.Result{Completed: true}
	pos := 0
	for s := range plan.Samples() {
		frame, err := seek(ctx, src, &pos, s.Frame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			logEndOfStream(log, pos, err)
			break
		}
		if err := p.processSample(ctx, log, det, opts, s, frame, &res); err != nil {
			return res, err
		}
	}

	log.Info("extraction finished",
		zap.Int("frames_sampled", res.FramesSampled),
		zap.Int("crops_saved", res.CropsSaved),
	)
	return res, nil
}

// seek decodes up to and including frame target, pos being the next frame the source returns
func seek(ctx context.Context, src video.Source, pos *int, target int) (image.Image, error) {
	for ; *pos < target; *pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := src.Skip(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := src.Next()
	if err != nil {
		return nil, err
	}
	*pos++
	return frame, nil
}

func logEndOfStream(log *zap.Logger, pos int, err error) {
	if errors.Is(err, io.EOF) {
		log.Debug("end of stream", zap.Int("frame", pos))
		return
	}
	log.Warn("frame read failed, stopping", zap.Int("frame", pos), zap.Error(err))
}

func (p *Processor) processSample(
	ctx context.Context,
	log *zap.Logger,
	det detect.Detector,
	opts Options,
	s sampler.Sample,
	frame image.Image,
	res *types.Result,
) error {
	dir := s.Key.Dir(opts.OutputDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating frame directory: %w", err)
	}

	res.FramesSampled++
	p.metrics.FramesSampled.Inc()
	log.Debug("processing frame",
		zap.Int("frame", s.Frame),
		zap.Int("second", s.Key.Second),
		zap.Int("frame_in_second", s.Key.Frame),
	)

	started := time.Now()
	dets, err := det.Detect(ctx, frame)
	p.metrics.DetectDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return fmt.Errorf("error detecting objects in frame %d: %w", s.Frame, err)
	}

	for i, d := range dets {
		if !strings.EqualFold(det.Label(d.ClassID), opts.TargetClass) {
			continue
		}

		img, ok := crop.Crop(frame, d.Box)
		if !ok {
			p.metrics.CropsSkipped.Inc()
			log.Warn("detection box outside frame",
				zap.Int("frame", s.Frame),
				zap.Int("detection", i),
				zap.Stringer("box", d.Box),
			)
			continue
		}

		path := filepath.Join(dir, sampler.CropName(opts.TargetClass, s.Frame, i))
		if err := crop.WriteJPEG(path, img, opts.JPEGQuality); err != nil {
			return err
		}

		res.CropsSaved++
		res.Files = append(res.Files, path)
		p.metrics.CropsSaved.Inc()
		log.Info("saved crop", zap.String("path", path), zap.Float32("confidence", d.Confidence))
	}
	return nil
}
