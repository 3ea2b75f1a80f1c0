package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/melody-ding/go-vidcrop/internal/config"
	"github.com/melody-ding/go-vidcrop/internal/detect"
	"github.com/melody-ding/go-vidcrop/internal/logger"
	"github.com/melody-ding/go-vidcrop/internal/metrics"
	"github.com/melody-ding/go-vidcrop/internal/processor"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("govidcrop", flag.ContinueOnError)
	videoPath := fs.String("video", "", "Path to the input video")
	modelPath := fs.String("model", "", "Path to the detection model, as understood by the model server")
	outputDir := fs.String("out", "output", "Directory to save cropped images")
	start := fs.String("start", "", "Start time (mm:ss or hh:mm:ss)")
	end := fs.String("end", "", "End time (mm:ss or hh:mm:ss)")
	fps := fs.Int("fps", cfg.TargetRate, "Frames to examine per second of video")
	class := fs.String("class", cfg.TargetClass, "Class name to crop, case-insensitive")
	detectorAddr := fs.String("detector", cfg.DetectorAddr, "Model server address")
	quality := fs.Int("quality", cfg.JPEGQuality, "JPEG quality of the crops")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	metricsFile := fs.String("metrics-file", cfg.MetricsFile, "Write run metrics to this file in Prometheus text format")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *videoPath == "" || *modelPath == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "-video, -model, -start and -end are required")
		fs.Usage()
		return 2
	}
	if *fps <= 0 {
		fmt.Fprintf(os.Stderr, "-fps must be positive, got %d\n", *fps)
		fs.Usage()
		return 2
	}

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	proc := processor.New(func(ctx context.Context, model string) (detect.Detector, error) {
		return detect.Dial(ctx, detect.Options{
			Addr:      *detectorAddr,
			ModelPath: model,
			Timeout:   cfg.DetectTimeout,
		}, log)
	}, log, m)

	res, err := proc.Process(ctx, processor.Options{
		VideoPath:   *videoPath,
		ModelPath:   *modelPath,
		OutputDir:   *outputDir,
		Start:       *start,
		End:         *end,
		TargetRate:  *fps,
		TargetClass: *class,
		JPEGQuality: *quality,
	})

	if *metricsFile != "" {
		if err := m.WriteTextfile(*metricsFile); err != nil {
			log.Warn("error writing metrics file", zap.String("path", *metricsFile), zap.Error(err))
		}
	}

	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return 1
	}
	if !res.Completed {
		return 1
	}

	fmt.Printf("Done! Total %d cropped images saved.\n", res.CropsSaved)
	return 0
}
