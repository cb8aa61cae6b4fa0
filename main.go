package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/yolo-overlay/annotate"
	"github.com/nvr-ai/yolo-overlay/augment"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/dataset"
	"github.com/nvr-ai/yolo-overlay/inference"
	"github.com/nvr-ai/yolo-overlay/labels"
	"github.com/nvr-ai/yolo-overlay/logging"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/nvr-ai/yolo-overlay/profiler"
	"github.com/nvr-ai/yolo-overlay/server"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	// Flags.
	flagConfig  = "config"
	flagDebug   = "debug"
	flagHost    = "host"
	flagPort    = "port"
	flagModel   = "model"
	flagBackend = "backend"
	flagDataDir = "data-dir"
	flagCount   = "count"
	flagSeed    = "seed"
	flagSize    = "size"
)

func main() {
	var (
		cfg    config.Config
		logger *zap.SugaredLogger
	)

	app := &cli.App{
		Name:  "yolo-overlay",
		Usage: "YOLO detection overlay server and dataset tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg = config.Default()
			if path := c.String(flagConfig); path != "" {
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			logger, err = logging.NewLogger("yolo-overlay", c.Bool(flagDebug))
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the overlay page and detection API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagHost, Usage: "listen host"},
					&cli.IntFlag{Name: flagPort, Usage: "listen port"},
					&cli.StringFlag{Name: flagModel, Usage: "model `FILE`"},
					&cli.StringFlag{Name: flagBackend, Usage: "detector backend (onnxruntime, opencv, remote)"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet(flagHost) {
						cfg.Server.Host = c.String(flagHost)
					}
					if c.IsSet(flagPort) {
						cfg.Server.Port = c.Int(flagPort)
					}
					if c.IsSet(flagModel) {
						cfg.Detector.ModelPath = c.String(flagModel)
					}
					if c.IsSet(flagBackend) {
						cfg.Detector.Backend = c.String(flagBackend)
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					return serve(c.Context, cfg, logger)
				},
			},
			{
				Name:  "augment",
				Usage: "write augmented copies of every labelled image in a dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDataDir, Usage: "dataset `DIR` holding images/ and labels/"},
					&cli.IntFlag{Name: flagCount, Usage: "augmented copies per image"},
					&cli.Uint64Flag{Name: flagSeed, Usage: "random seed, 0 for a random run"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet(flagDataDir) {
						cfg.Augment.DataDir = c.String(flagDataDir)
					}
					if c.IsSet(flagCount) {
						cfg.Augment.PerImage = c.Int(flagCount)
					}
					if c.IsSet(flagSeed) {
						cfg.Augment.Seed = c.Uint64(flagSeed)
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					return augmentDataset(c.Context, cfg.Augment, logger)
				},
			},
			{
				Name:      "annotate",
				Usage:     "draw detections from each configured model onto copies of images",
				ArgsUsage: "<image or directory>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagSize, Usage: "longest side images are downscaled to, 0 to keep the original size"},
					&cli.StringFlag{Name: flagBackend, Usage: "detector backend (onnxruntime, opencv, remote)"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("annotate expects exactly one image or directory")
					}
					if c.IsSet(flagSize) {
						cfg.Annotate.Size = c.Int(flagSize)
					}
					if c.IsSet(flagBackend) {
						cfg.Detector.Backend = c.String(flagBackend)
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					return annotateImages(c.Context, cfg, c.Args().First(), logger)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// serverClasses loads the dataset class names. A missing file leaves detections named by
// class index.
func serverClasses(path string, logger *zap.SugaredLogger) models.OutputClassSet {
	names, err := labels.LoadClassNames(path)
	if err != nil {
		logger.Warnw("class names unavailable, using class indices", "error", err)
		return models.NewClassSet(models.ModelFamilyCustom, nil)
	}
	logger.Infof("Loaded %d class names from %s", len(names), path)
	return models.NewClassSet(models.ModelFamilyCustom, names)
}

func serve(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) error {
	classes := serverClasses(cfg.Server.ClassesFile, logger)

	d, err := inference.NewDetector(cfg.Detector, classes, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: logger})
	srv, err := server.New(server.Options{
		Config:   cfg.Server,
		Detector: inference.NewProfiled(d, prof, "inference"),
		Classes:  classes,
		Profiler: prof,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func augmentDataset(ctx context.Context, cfg config.Augment, logger *zap.SugaredLogger) error {
	runner := dataset.NewRunner(dataset.Options{
		DataDir:  cfg.DataDir,
		PerImage: cfg.PerImage,
		Seed:     cfg.Seed,
		Pipeline: augment.Default(),
	}, logger)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Infow("augmentation complete",
		"images", summary.Images,
		"augmented", summary.Augmented,
		"skipped", summary.Skipped,
		"written", summary.Written,
	)
	return nil
}

func annotateImages(ctx context.Context, cfg config.Config, input string, logger *zap.SugaredLogger) error {
	runner := annotate.NewRunner(annotate.Options{
		Config:   cfg.Annotate,
		Detector: cfg.Detector,
		Classes:  models.YOLOClasses,
	}, logger)
	defer runner.Close()

	summary, err := runner.Run(ctx, input)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return errors.Errorf("%d of %d annotations failed", summary.Failed, summary.Failed+summary.Written)
	}
	return nil
}
