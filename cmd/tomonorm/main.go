package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"tomonorm/pkg/config"
	"tomonorm/pkg/normalize"
	"tomonorm/pkg/visualization"
	"tomonorm/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "tomonorm.yaml", "Path to YAML configuration file")
	tomoPath := flag.String("tomo", "", "Raw tomogram volume file (little-endian float64)")
	flatPath := flag.String("flat", "", "Raw flat-field stack file")
	darkPath := flag.String("dark", "", "Raw dark-field stack file")
	outPath := flag.String("out", "normalized.raw", "Output volume file")
	frames := flag.Int("frames", 0, "Number of tomogram frames")
	rows := flag.Int("rows", 0, "Detector rows per frame")
	cols := flag.Int("cols", 0, "Detector columns per frame")
	flatFrames := flag.Int("flat-frames", 0, "Number of flat-field frames")
	darkFrames := flag.Int("dark-frames", 0, "Number of dark-field frames")
	mode := flag.String("mode", "flat", "Normalization mode: flat, background, or nearest")
	flatLocArg := flag.String("flat-locations", "", "Comma-separated tomogram frame indices of flat acquisitions (nearest mode)")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = config default)")
	chunkSize := flag.Int("chunk", 0, "Frames per chunk (0 = config default)")
	cutoff := flag.Float64("cutoff", 0, "Upper clamp on corrected intensities (0 = config default)")
	air := flag.Int("air", 0, "Boundary air pixels per row for background mode (0 = config default)")
	previewDir := flag.String("preview-dir", "", "Directory for corrected frame previews (empty = config default)")
	flag.Parse()

	if *tomoPath == "" || *frames <= 0 || *rows <= 0 || *cols <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "path", *configPath, "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "tomonorm"})
	if cfg.Output.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	// Command-line flags override the configuration file
	if *workers == 0 {
		*workers = cfg.Processing.Workers
	}
	if *chunkSize == 0 {
		*chunkSize = cfg.Processing.ChunkSize
	}
	if *cutoff == 0 {
		*cutoff = cfg.Processing.Cutoff
	}
	if *air == 0 {
		*air = cfg.Processing.Air
	}
	if *previewDir == "" {
		*previewDir = cfg.Output.PreviewDir
	}

	logger.Info("loading tomogram", "path", *tomoPath, "frames", *frames, "rows", *rows, "cols", *cols)
	tomo, err := volume.Load(*tomoPath, *frames, *rows, *cols)
	if err != nil {
		logger.Fatal("failed to load tomogram", "err", err)
	}

	n := normalize.NewNormalizer(normalize.Options{
		Workers:   *workers,
		ChunkSize: *chunkSize,
		Cutoff:    *cutoff,
	})

	start := time.Now()
	result := tomo

	switch *mode {
	case "flat":
		flat, dark, err := loadCalibration(*flatPath, *flatFrames, *darkPath, *darkFrames, *rows, *cols)
		if err != nil {
			logger.Fatal("failed to load calibration stacks", "err", err)
		}
		logger.Info("normalizing with mean flat/dark references", "workers", *workers, "chunk", *chunkSize)
		if err := n.Normalize(tomo, flat, dark); err != nil {
			logger.Fatal("normalization failed", "err", err)
		}

	case "background":
		logger.Info("normalizing against row background", "air", *air, "workers", *workers)
		if err := n.NormalizeBackground(tomo, *air); err != nil {
			logger.Fatal("background normalization failed", "err", err)
		}

	case "nearest":
		flats, dark, err := loadCalibration(*flatPath, *flatFrames, *darkPath, *darkFrames, *rows, *cols)
		if err != nil {
			logger.Fatal("failed to load calibration stacks", "err", err)
		}
		flatLoc, err := parseFlatLocations(*flatLocArg)
		if err != nil {
			logger.Fatal("invalid flat locations", "err", err)
		}
		logger.Info("normalizing with nearest flat fields", "acquisitions", len(flatLoc), "workers", *workers)
		result, err = n.NormalizeNearestFlats(tomo, flats, dark, flatLoc)
		if err != nil {
			logger.Fatal("nearest-flat normalization failed", "err", err)
		}

	default:
		logger.Fatal("unknown mode", "mode", *mode)
	}

	logger.Info("normalization complete", "elapsed", time.Since(start))

	if err := result.Save(*outPath); err != nil {
		logger.Fatal("failed to save output volume", "err", err)
	}
	logger.Info("saved corrected volume", "path", *outPath)

	if *previewDir != "" {
		logger.Debug("writing frame previews", "dir", *previewDir)
		viewer := visualization.NewViewer(result)
		if err := viewer.SaveFrameSequence(*previewDir); err != nil {
			logger.Error("failed to write previews", "err", err)
		}
	}
}

// loadCalibration loads the flat and dark stacks, which must share the
// tomogram's frame shape.
func loadCalibration(flatPath string, flatFrames int, darkPath string, darkFrames, rows, cols int) (*volume.Volume, *volume.Volume, error) {
	if flatPath == "" || flatFrames <= 0 {
		return nil, nil, fmt.Errorf("flat stack path and frame count are required")
	}
	if darkPath == "" || darkFrames <= 0 {
		return nil, nil, fmt.Errorf("dark stack path and frame count are required")
	}

	flat, err := volume.Load(flatPath, flatFrames, rows, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("flat stack: %w", err)
	}
	dark, err := volume.Load(darkPath, darkFrames, rows, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("dark stack: %w", err)
	}
	return flat, dark, nil
}

// parseFlatLocations parses a comma-separated list of frame indices.
func parseFlatLocations(arg string) ([]int, error) {
	if arg == "" {
		return nil, fmt.Errorf("flat-locations is required in nearest mode")
	}

	parts := strings.Split(arg, ",")
	locations := make([]int, 0, len(parts))
	for _, part := range parts {
		loc, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid frame index %q: %w", part, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
