// Command losscape computes and plots the loss landscape of a linear
// regression model around its current parameters.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/losscape/internal/config"
	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/landscape"
	"github.com/banshee-data/losscape/internal/linreg"
	"github.com/banshee-data/losscape/internal/loss"
	"github.com/banshee-data/losscape/internal/store"
	"github.com/banshee-data/losscape/internal/sweep"
	"github.com/banshee-data/losscape/internal/version"
	"github.com/banshee-data/losscape/internal/vtp"
)

// Shape of the synthetic problem used when no -model is given.
const (
	syntheticFeatures = 8
	syntheticOutputs  = 1
	syntheticSamples  = 256
	syntheticBatch    = 32
	syntheticNoise    = 0.1
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "1d":
		err = runSweep(ctx, "1d", args)
	case "2d":
		err = runSweep(ctx, "2d", args)
	case "inspect":
		err = runInspect(ctx, args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`losscape - loss landscape explorer

Usage: losscape <command> [options]

Commands:
  1d         Sweep one random direction and plot the loss curve
  2d         Sweep two random directions, plot a contour and export meshes
  inspect    Summarise a .vtp mesh or the runs stored in a data.db
  version    Show build information
  help       Show this help message

Sweep Flags:
  -out <dir>          Output directory (default: .)
  -config <file>      JSON config file; flags override its values
  -x <min:max>        Range along the first direction (default: -1:1)
  -y <min:max>        Range along the second direction (default: -1:1)
  -points <n>         Samples per axis (default: 50)
  -batches <n>        Batches per loss evaluation (default: 8)
  -save-only          Skip the interactive HTML pages (default: true)
  -vtp                Write .vtp meshes for 2d runs (default: true)
  -db                 Store raw X/Y/losses in data.db for 2d runs (default: true)
  -zmax <z>           Clamp losses above z in the meshes (default: off)
  -interp <n>         Resample meshes onto n x n points (default: off)
  -seed <n>           Seed for directions and synthetic data (default: 0)
  -device <name>      Execution target (default: cpu)
  -model <file>       JSON checkpoint; a fitted synthetic model is used when empty

Examples:
  losscape 2d -out runs/a -points 25 -zmax 5
  losscape 1d -x -0.5:0.5 -save-only=false
  losscape inspect runs/a/losscape_log.vtp`)
}

// sweepFlags are the flag values before they are merged into the config.
type sweepFlags struct {
	fs *flag.FlagSet

	out, configPath, xRange, yRange, device, model string
	points, batches, interp                        int
	saveOnly, outputVTP, outputDB                  bool
	zmax                                           float64
	seed                                           uint64
}

func newSweepFlags(name string) *sweepFlags {
	f := &sweepFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	def := config.EmptyLandscapeConfig()
	f.fs.StringVar(&f.out, "out", def.GetOutputDir(), "output directory")
	f.fs.StringVar(&f.configPath, "config", "", "JSON config file")
	f.fs.StringVar(&f.xRange, "x", "-1:1", "range along the first direction (min:max)")
	f.fs.StringVar(&f.yRange, "y", "-1:1", "range along the second direction (min:max)")
	f.fs.IntVar(&f.points, "points", def.GetNumPoints(), "samples per axis")
	f.fs.IntVar(&f.batches, "batches", def.GetNumBatches(), "batches per loss evaluation")
	f.fs.BoolVar(&f.saveOnly, "save-only", def.GetSaveOnly(), "skip the interactive HTML pages")
	f.fs.BoolVar(&f.outputVTP, "vtp", def.GetOutputVTP(), "write .vtp meshes (2d)")
	f.fs.BoolVar(&f.outputDB, "db", def.GetOutputDB(), "store raw grids in data.db (2d)")
	f.fs.Float64Var(&f.zmax, "zmax", def.GetZMax(), "clamp losses above this value in the meshes; <= 0 disables")
	f.fs.IntVar(&f.interp, "interp", def.GetInterp(), "resample meshes onto n x n points; <= 0 disables")
	f.fs.Uint64Var(&f.seed, "seed", def.GetSeed(), "seed for directions and synthetic data")
	f.fs.StringVar(&f.device, "device", def.GetDevice(), "execution target")
	f.fs.StringVar(&f.model, "model", "", "JSON model checkpoint")
	return f
}

// parse reads args and returns the config file (if any) overlaid with every
// flag that was set explicitly.
func (f *sweepFlags) parse(args []string) (*config.LandscapeConfig, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.EmptyLandscapeConfig()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var ferr error
	f.fs.Visit(func(fl *flag.Flag) {
		if ferr != nil {
			return
		}
		switch fl.Name {
		case "out":
			cfg.OutputDir = &f.out
		case "x":
			cfg.XMin, cfg.XMax, ferr = parseBounds("x", f.xRange)
		case "y":
			cfg.YMin, cfg.YMax, ferr = parseBounds("y", f.yRange)
		case "points":
			cfg.NumPoints = &f.points
		case "batches":
			cfg.NumBatches = &f.batches
		case "save-only":
			cfg.SaveOnly = &f.saveOnly
		case "vtp":
			cfg.OutputVTP = &f.outputVTP
		case "db":
			cfg.OutputDB = &f.outputDB
		case "zmax":
			cfg.ZMax = &f.zmax
		case "interp":
			cfg.Interp = &f.interp
		case "seed":
			cfg.Seed = &f.seed
		case "device":
			cfg.Device = &f.device
		}
	})
	if ferr != nil {
		return nil, ferr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseBounds(axis, s string) (*float64, *float64, error) {
	spec, err := sweep.ParseRangeSpec(s, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("-%s: %w", axis, err)
	}
	return &spec.Min, &spec.Max, nil
}

func runSweep(ctx context.Context, kind string, args []string) error {
	f := newSweepFlags(kind)
	cfg, err := f.parse(args)
	if err != nil {
		return err
	}

	fsys := fsutil.OSFileSystem{}
	model, data, err := buildProblem(fsys, f.model, cfg)
	if err != nil {
		return err
	}
	eval := &loss.Evaluator{Data: data, Criterion: loss.MSE, NumBatches: cfg.GetNumBatches()}
	opts := landscape.Options{Config: cfg, FS: fsys, Evaluator: eval}

	switch kind {
	case "1d":
		res, err := landscape.Create1D(ctx, model, opts)
		if err != nil {
			return err
		}
		log.Printf("run %s complete: %s", res.RunID, strings.Join(res.Files, ", "))
	default:
		res, err := landscape.Create2D(ctx, model, opts)
		if err != nil {
			return err
		}
		log.Printf("run %s complete: %s", res.RunID, strings.Join(res.Files, ", "))
	}
	return nil
}

// buildProblem loads the checkpoint at path, or fits a fresh model to the
// synthetic data when path is empty.
func buildProblem(fsys fsutil.FileSystem, path string, cfg *config.LandscapeConfig) (*linreg.Model, *loss.Dataset, error) {
	seed := cfg.GetSeed()
	if path == "" {
		truth := linreg.New(syntheticFeatures, syntheticOutputs, seed+1)
		data, err := linreg.Synthetic(truth, syntheticSamples, syntheticBatch, syntheticNoise, seed+2)
		if err != nil {
			return nil, nil, err
		}
		m := linreg.New(syntheticFeatures, syntheticOutputs, seed+3)
		m.Device = cfg.GetDevice()
		if err := m.Fit(data.Inputs, data.Targets); err != nil {
			return nil, nil, err
		}
		return m, data, nil
	}

	m, err := linreg.Load(fsys, path, cfg.GetDevice())
	if err != nil {
		return nil, nil, err
	}
	truth := linreg.New(m.In, m.Out, seed+1)
	data, err := linreg.Synthetic(truth, syntheticSamples, syntheticBatch, syntheticNoise, seed+2)
	if err != nil {
		return nil, nil, err
	}
	return m, data, nil
}

func runInspect(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	runID := fs.String("run", "", "run ID to summarise (data.db only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one file, got %d", fs.NArg())
	}
	path := fs.Arg(0)

	switch filepath.Ext(path) {
	case ".vtp":
		return inspectMesh(path, w)
	case ".db":
		return inspectStore(ctx, path, *runID, w)
	default:
		return fmt.Errorf("unsupported file %q: want .vtp or .db", path)
	}
}

func inspectMesh(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := vtp.Read(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d points, %d verts, %d polys\n",
		path, doc.Piece.NumberOfPoints, doc.Piece.NumberOfVerts, doc.Piece.NumPolys())
	for _, a := range append(append([]vtp.DataArray{}, doc.Piece.PointData...), doc.Piece.CellData...) {
		fmt.Fprintf(w, "  %s: [%s, %s]\n", a.Name, a.RangeMin, a.RangeMax)
	}
	return nil
}

func inspectStore(ctx context.Context, path, runID string, w io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID != "" {
		meta, surface, err := st.LoadSurface(ctx, runID)
		if err != nil {
			return err
		}
		r, c := surface.Losses.Dims()
		fmt.Fprintf(w, "%s %s %s x=[%g,%g] y=[%g,%g] grid=%dx%d\n",
			meta.ID, meta.Kind, meta.CreatedAt.Format(time.RFC3339),
			meta.XMin, meta.XMax, meta.YMin, meta.YMax, r, c)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, meta := range runs {
		fmt.Fprintf(w, "%s %s %s points=%d\n",
			meta.ID, meta.Kind, meta.CreatedAt.Format(time.RFC3339), meta.NumPoints)
	}
	fmt.Fprintf(w, "%d runs\n", len(runs))
	return nil
}
