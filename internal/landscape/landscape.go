// Package landscape drives a full loss-landscape computation: it snapshots
// the model, samples or accepts directions, sweeps the grid and writes the
// plots, meshes and raw data.
package landscape

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/losscape/internal/config"
	"github.com/banshee-data/losscape/internal/directions"
	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/monitoring"
	"github.com/banshee-data/losscape/internal/params"
	"github.com/banshee-data/losscape/internal/plotting"
	"github.com/banshee-data/losscape/internal/store"
	"github.com/banshee-data/losscape/internal/sweep"
	"github.com/banshee-data/losscape/internal/timeutil"
	"github.com/banshee-data/losscape/internal/vtp"
)

// Output file names.
const (
	LinePlotFile    = "2d_losscape.png"
	LinePageFile    = "2d_losscape.html"
	SurfacePlotFile = "3d_losscape.png"
	SurfacePageFile = "3d_losscape.html"
	DataFile        = "data.db"
)

// ErrNoEvaluator is returned when Options.Evaluator is nil.
var ErrNoEvaluator = errors.New("landscape: no evaluator")

// Options configure a run. Config may be nil for all defaults, FS nil for
// the OS filesystem and Clock nil for wall-clock time.
type Options struct {
	Config    *config.LandscapeConfig
	FS        fsutil.FileSystem
	Clock     timeutil.Clock
	Evaluator sweep.Evaluator

	// Directions overrides the sampled directions. Create1D uses the first,
	// Create2D the first two.
	Directions []params.Direction

	Progress func(sweep.Progress)
}

func (o Options) normalized() (Options, error) {
	if o.Config == nil {
		o.Config = config.EmptyLandscapeConfig()
	}
	if err := o.Config.Validate(); err != nil {
		return o, err
	}
	if o.FS == nil {
		o.FS = fsutil.OSFileSystem{}
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.Evaluator == nil {
		return o, ErrNoEvaluator
	}
	return o, nil
}

func (o Options) sweepOptions() []sweep.Option {
	if o.Progress == nil {
		return nil
	}
	return []sweep.Option{sweep.WithProgress(o.Progress)}
}

// Result1D is the outcome of Create1D.
type Result1D struct {
	RunID string
	Line  sweep.Line
	Files []string
}

// Result2D is the outcome of Create2D.
type Result2D struct {
	RunID   string
	Surface sweep.Surface
	Files   []string
}

// Create1D sweeps one direction across [x_min, x_max] and plots the curve.
func Create1D(ctx context.Context, m params.Model, opts Options) (*Result1D, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	runID := uuid.NewString()
	started := opts.Clock.Now()

	baseline := params.TakeSnapshot(m)
	var dir params.Direction
	if len(opts.Directions) > 0 {
		dir = opts.Directions[0]
	} else {
		dir = directions.NewGenerator(cfg.GetSeed(), cfg.GetIgnoreBiasBN()).CreateRandomDirection(m)
	}

	spec := sweep.RangeSpec{Min: cfg.GetXMin(), Max: cfg.GetXMax(), Num: cfg.GetNumPoints()}
	monitoring.Logf("[landscape] run %s: 1d sweep x=%s over %d parameters", runID, spec, baseline.NumElements())

	line, err := sweep.Sweep1D(ctx, m, baseline, dir, spec, opts.Evaluator, opts.sweepOptions()...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	res := &Result1D{RunID: runID, Line: line}
	out := cfg.GetOutputDir()

	path := filepath.Join(out, LinePlotFile)
	if err := plotting.LinePNG(opts.FS, path, line.Coords, line.Losses); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	res.Files = append(res.Files, path)

	if !cfg.GetSaveOnly() {
		path := filepath.Join(out, LinePageFile)
		if err := plotting.LineHTML(opts.FS, path, line.Coords, line.Losses); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		res.Files = append(res.Files, path)
	}

	monitoring.Logf("[landscape] run %s: wrote %v in %s", runID, res.Files, opts.Clock.Since(started))
	return res, nil
}

// Create2D sweeps the plane spanned by two directions and writes the
// contour plot, the optional HTML page, the .vtp meshes and the raw store.
func Create2D(ctx context.Context, m params.Model, opts Options) (*Result2D, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	runID := uuid.NewString()
	started := opts.Clock.Now()

	baseline := params.TakeSnapshot(m)
	var dirs [2]params.Direction
	if len(opts.Directions) >= 2 {
		dirs = [2]params.Direction{opts.Directions[0], opts.Directions[1]}
	} else {
		dirs[0], dirs[1] = directions.NewGenerator(cfg.GetSeed(), cfg.GetIgnoreBiasBN()).CreateRandomDirections(m)
	}

	n := cfg.GetNumPoints()
	xSpec := sweep.RangeSpec{Min: cfg.GetXMin(), Max: cfg.GetXMax(), Num: n}
	ySpec := sweep.RangeSpec{Min: cfg.GetYMin(), Max: cfg.GetYMax(), Num: n}
	monitoring.Logf("[landscape] run %s: 2d sweep x=%s y=%s over %d parameters",
		runID, xSpec, ySpec, baseline.NumElements())

	surface, err := sweep.Sweep2D(ctx, m, baseline, dirs, xSpec, ySpec, opts.Evaluator, opts.sweepOptions()...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	res := &Result2D{RunID: runID, Surface: surface}
	out := cfg.GetOutputDir()

	path := filepath.Join(out, SurfacePlotFile)
	if err := plotting.ContourPNG(opts.FS, path, surface.Xs, surface.Ys, surface.Losses); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	res.Files = append(res.Files, path)

	if !cfg.GetSaveOnly() {
		path := filepath.Join(out, SurfacePageFile)
		if err := plotting.HeatmapHTML(opts.FS, path, surface.Xs, surface.Ys, surface.Losses); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		res.Files = append(res.Files, path)
	}

	if cfg.GetOutputVTP() {
		vopts := vtp.DefaultOptions()
		vopts.ZMax = cfg.GetZMax()
		vopts.Interp = cfg.GetInterp()
		vopts.OutputDir = out
		paths, err := vtp.WritePair(opts.FS, surface.X, surface.Y, surface.Losses, vopts)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		res.Files = append(res.Files, paths...)
	}

	if cfg.GetOutputDB() {
		path, err := saveSurface(ctx, opts.FS, out, runID, started, cfg, surface)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		res.Files = append(res.Files, path)
	}

	monitoring.Logf("[landscape] run %s: wrote %v in %s", runID, res.Files, opts.Clock.Since(started))
	return res, nil
}

func saveSurface(ctx context.Context, fsys fsutil.FileSystem, out, runID string, started time.Time,
	cfg *config.LandscapeConfig, surface sweep.Surface) (string, error) {
	if err := fsys.MkdirAll(out, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", out, err)
	}

	path := filepath.Join(out, DataFile)
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	meta := store.RunMeta{
		ID:        runID,
		Kind:      "2d",
		CreatedAt: started,
		XMin:      cfg.GetXMin(),
		XMax:      cfg.GetXMax(),
		YMin:      cfg.GetYMin(),
		YMax:      cfg.GetYMax(),
		NumPoints: cfg.GetNumPoints(),
	}
	err = st.SaveSurface(ctx, meta, store.Surface{X: surface.X, Y: surface.Y, Losses: surface.Losses})
	if err != nil {
		return "", err
	}
	return path, nil
}
