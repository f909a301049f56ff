// Package main benchmarks robust pose estimation on synthetic scenes.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/robustpose/camera"
	"go.viam.com/robustpose/logging"
	"go.viam.com/robustpose/ransac"
	"go.viam.com/robustpose/spatialmath"
	"go.viam.com/robustpose/testutils"
	"go.viam.com/robustpose/utils"
)

const (
	flagPoints       = "points"
	flagOutlierRatio = "outlier-ratio"
	flagNoise        = "noise"
	flagThreshold    = "threshold"
	flagTrials       = "trials"
	flagProbability  = "probability"
	flagThreads      = "threads"
	flagRuns         = "runs"
	flagSeed         = "seed"
	flagDebug        = "debug"
	flagPlot         = "plot"
	flagFocal        = "focal"
)

type benchOptions struct {
	points       int
	outlierRatio float64
	noise        float64
	threshold    float64
	trials       int
	probability  float64
	threads      int
	runs         int
	seed         int64
	plotPath     string
	focal        float64
}

type benchRow struct {
	mode        string
	seed        int64
	found       bool
	inliers     int
	trueInliers int
	trials      int
	rotErr      float64
	transErr    float64
	duration    time.Duration
	errs        []float64
	meanErrPx   float64
	err         error
}

func main() {
	app := &cli.App{
		Name:  "bench",
		Usage: "benchmark robust pose estimation on synthetic scenes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: flagPoints, Value: 100, Usage: "number of correspondences per scene"},
			&cli.Float64Flag{Name: flagOutlierRatio, Value: 0.4, Usage: "fraction of outlier correspondences"},
			&cli.Float64Flag{Name: flagNoise, Value: 5e-5, Usage: "standard deviation of the inlier image noise"},
			&cli.Float64Flag{Name: flagThreshold, Value: 2e-3, Usage: "inlier reprojection error threshold"},
			&cli.IntFlag{Name: flagTrials, Usage: "trial budget, computed from the outlier ratio when zero"},
			&cli.Float64Flag{Name: flagProbability, Value: 0.99, Usage: "success probability used to compute the trial budget"},
			&cli.IntFlag{Name: flagThreads, Usage: "parallel workers, zero picks one per available CPU"},
			&cli.IntFlag{Name: flagRuns, Value: 5, Usage: "number of scenes"},
			&cli.Int64Flag{Name: flagSeed, Usage: "seed of the first scene"},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
			&cli.StringFlag{Name: flagPlot, Usage: "save a histogram of inlier reprojection errors to this png"},
			&cli.Float64Flag{Name: flagFocal, Value: 600, Usage: "focal length in pixels of the simulated 640x480 camera"},
		},
		Action: func(c *cli.Context) error {
			logger := logging.NewLogger("bench")
			ctx := c.Context
			if c.Bool(flagDebug) {
				ctx = logging.EnableDebugMode(ctx, "")
			}
			opts := benchOptions{
				points:       c.Int(flagPoints),
				outlierRatio: c.Float64(flagOutlierRatio),
				noise:        c.Float64(flagNoise),
				threshold:    c.Float64(flagThreshold),
				trials:       c.Int(flagTrials),
				probability:  c.Float64(flagProbability),
				threads:      c.Int(flagThreads),
				runs:         c.Int(flagRuns),
				seed:         c.Int64(flagSeed),
				plotPath:     c.String(flagPlot),
				focal:        c.Float64(flagFocal),
			}
			return runBench(ctx, opts, logger, c.App.Writer)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runBench(ctx context.Context, opts benchOptions, logger logging.Logger, w io.Writer) error {
	if opts.runs <= 0 {
		return errors.Errorf("--%s must be positive", flagRuns)
	}
	intrinsics := &camera.Intrinsics{Width: 640, Height: 480, Fx: opts.focal, Fy: opts.focal, Ppx: 320, Ppy: 240}
	if err := intrinsics.CheckValid(); err != nil {
		return err
	}
	numOutliers := int(math.Round(float64(opts.points) * opts.outlierRatio))
	numInliers := opts.points - numOutliers
	if numInliers < 4 {
		return errors.Errorf("%d points with --%s %v leave fewer than 4 inliers", opts.points, flagOutlierRatio, opts.outlierRatio)
	}

	trials := opts.trials
	if trials <= 0 {
		var err error
		trials, err = ransac.TrialCount(opts.probability, opts.outlierRatio, 4, -1)
		if err != nil {
			return errors.Wrapf(err, "cannot compute a trial budget for an outlier ratio of %v", opts.outlierRatio)
		}
		logger.Infof("using %d trials", trials)
	}

	rows := make([]benchRow, 2*opts.runs)
	var rowsMu sync.Mutex
	fns := make([]utils.SimpleFunc, 0, opts.runs)
	for run := 0; run < opts.runs; run++ {
		seed := opts.seed + int64(run)
		fns = append(fns, func(ctx context.Context) error {
			scene := testutils.NewScene(testutils.SceneConfig{
				NumInliers:  numInliers,
				NumOutliers: numOutliers,
				Noise:       opts.noise,
				Seed:        seed,
			})
			if err := observe(scene, intrinsics); err != nil {
				return err
			}
			for i, parallel := range []bool{false, true} {
				cfg := ransac.NewDefaultConfig()
				cfg.MaxTrials = trials
				cfg.InlierConsensus = numInliers
				cfg.DistanceThreshold = opts.threshold
				cfg.Parallel = parallel
				cfg.NumThreads = opts.threads
				cfg.Seed = seed
				row := estimate(ctx, scene, cfg, logger.Sublogger(fmt.Sprintf("run%d", run)))
				if len(row.errs) > 0 {
					row.meanErrPx = lo.Mean(row.errs) * intrinsics.Fx
				}
				rowsMu.Lock()
				rows[2*run+i] = row
				rowsMu.Unlock()
			}
			return nil
		})
	}
	elapsed, err := utils.RunInParallel(ctx, fns)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, renderTable(rows))
	fmt.Fprintf(w, "%d scenes of %d points (%d outliers) in %v\n", opts.runs, opts.points, numOutliers, elapsed)
	if err := printHistogram(w, rows, intrinsics); err != nil {
		return err
	}
	if opts.plotPath != "" {
		if err := saveHistogram(rows, opts.threshold, opts.plotPath); err != nil {
			return err
		}
		logger.Infof("saved reprojection error histogram to %s", opts.plotPath)
	}
	return nil
}

// observe replaces the image points of the scene by what the camera measures: pixel coordinates
// converted back to the normalized image plane.
func observe(scene *testutils.Scene, intrinsics *camera.Intrinsics) error {
	images := lo.Map(scene.Correspondences, func(c spatialmath.Correspondence, _ int) r2.Point { return c.Image })
	us, vs := intrinsics.NormalizedToPixels(images)
	normalized, err := intrinsics.PixelsToNormalized(us, vs)
	if err != nil {
		return err
	}
	for i, p := range normalized {
		scene.Correspondences[i].Image = p
	}
	return nil
}

func estimate(ctx context.Context, scene *testutils.Scene, cfg ransac.Config, logger logging.Logger) benchRow {
	row := benchRow{mode: "sequential", seed: cfg.Seed}
	if cfg.Parallel {
		row.mode = "parallel"
	}
	start := time.Now()
	res, err := ransac.EstimatePose(ctx, scene.Correspondences, cfg, logger)
	row.duration = time.Since(start)
	if err != nil {
		logger.Warnw("estimation failed", "mode", row.mode, "error", err)
		row.err = err
		return row
	}
	row.found = res.Found
	row.trials = res.Trials
	if !res.Found {
		return row
	}
	row.inliers = res.NumInliers
	row.trueInliers = scene.CountTrueInliers(res.Inliers)
	row.rotErr = spatialmath.RotationAngleBetween(res.Pose.Rotation(), scene.Pose.Rotation())
	row.transErr = res.Pose.Translation().Sub(scene.Pose.Translation()).Norm()
	inliers := make([]spatialmath.Correspondence, 0, len(res.Inliers))
	for _, i := range res.Inliers {
		inliers = append(inliers, scene.Correspondences[i])
	}
	row.errs = ransac.ReprojectionErrors(res.Pose, inliers)
	return row
}

func renderTable(rows []benchRow) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Mode", "Seed", "Found", "Inliers", "True inliers", "Trials", "Rotation err (deg)", "Translation err", "Mean err (px)", "Time"})
	for _, row := range rows {
		found := fmt.Sprintf("%t", row.found)
		if row.err != nil {
			found = row.err.Error()
		}
		t.AppendRow(table.Row{
			row.mode,
			row.seed,
			found,
			row.inliers,
			row.trueInliers,
			row.trials,
			fmt.Sprintf("%.3f", utils.RadToDeg(row.rotErr)),
			fmt.Sprintf("%.2e", row.transErr),
			fmt.Sprintf("%.3f", row.meanErrPx),
			row.duration.Round(time.Microsecond),
		})
	}
	return t.Render()
}

// printHistogram writes a text histogram of all inlier reprojection errors, in pixels.
func printHistogram(w io.Writer, rows []benchRow, intrinsics *camera.Intrinsics) error {
	var pixelErrs []float64
	for _, row := range rows {
		for _, e := range row.errs {
			pixelErrs = append(pixelErrs, e*intrinsics.Fx)
		}
	}
	if len(pixelErrs) == 0 {
		return nil
	}
	fmt.Fprintln(w, "inlier reprojection error (px)")
	return histogram.Fprint(w, histogram.Hist(10, pixelErrs), histogram.Linear(40))
}

func saveHistogram(rows []benchRow, threshold float64, path string) error {
	var values plotter.Values
	for _, row := range rows {
		values = append(values, row.errs...)
	}
	if len(values) == 0 {
		return errors.New("no inliers to plot")
	}

	p := plot.New()
	p.Title.Text = "Inlier reprojection error"
	p.X.Label.Text = "error (normalized units)"
	p.Y.Label.Text = "count"
	p.X.Min = 0
	p.X.Max = threshold

	hist, err := plotter.NewHist(values, 40)
	if err != nil {
		return errors.Wrap(err, "failed to build histogram")
	}
	hist.LineStyle.Width = vg.Points(0.5)
	p.Add(hist)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}
