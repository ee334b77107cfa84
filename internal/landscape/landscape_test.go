package landscape

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/losscape/internal/config"
	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/monitoring"
	"github.com/banshee-data/losscape/internal/params"
	"github.com/banshee-data/losscape/internal/store"
	"github.com/banshee-data/losscape/internal/sweep"
	"github.com/banshee-data/losscape/internal/timeutil"
	"github.com/banshee-data/losscape/internal/vtp"
)

func quiet(t *testing.T) {
	t.Helper()
	_, restore := monitoring.Capture()
	t.Cleanup(restore)
}

func testConfig(out string, points int) *config.LandscapeConfig {
	cfg := config.DefaultLandscapeConfig()
	*cfg.OutputDir = out
	*cfg.NumPoints = points
	*cfg.OutputDB = false
	return cfg
}

func sumEvaluator() sweep.Evaluator {
	return sweep.EvaluatorFunc(func(_ context.Context, m params.Model) (float64, error) {
		total := 0.0
		for i := 0; i < m.NumParams(); i++ {
			total += m.Param(i).Sum()
		}
		return total, nil
	})
}

// sumSquares gives a bowl with its minimum at the zero baseline.
func sumSquares() sweep.Evaluator {
	return sweep.EvaluatorFunc(func(_ context.Context, m params.Model) (float64, error) {
		total := 0.0
		for i := 0; i < m.NumParams(); i++ {
			for _, v := range m.Param(i).Data {
				total += v * v
			}
		}
		return total, nil
	})
}

func zeroModel() *params.MemoryModel {
	return params.NewMemoryModel(params.Zeros(3), params.Zeros(2, 2))
}

func splitDirections() []params.Direction {
	return []params.Direction{
		{params.Full(1, 3), params.Zeros(2, 2)},
		{params.Zeros(3), params.Full(1, 2, 2)},
	}
}

func TestCreate1D(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()
	cfg := testConfig("out", 3)
	*cfg.SaveOnly = false

	m := zeroModel()
	baseline := params.TakeSnapshot(m)
	res, err := Create1D(context.Background(), m, Options{
		Config:     cfg,
		FS:         fsys,
		Evaluator:  sumEvaluator(),
		Directions: []params.Direction{{params.Full(1, 3), params.Full(1, 2, 2)}},
	})
	require.NoError(t, err)

	if diff := cmp.Diff([]float64{-7, 0, 7}, res.Line.Losses); diff != "" {
		t.Errorf("losses mismatch (-want +got):\n%s", diff)
	}
	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err, "run ID is not a UUID")

	want := []string{filepath.Join("out", LinePlotFile), filepath.Join("out", LinePageFile)}
	assert.Equal(t, want, res.Files)
	assert.ElementsMatch(t, want, fsys.Files())
	assert.True(t, params.TakeSnapshot(m).Identical(baseline))
}

func TestCreate1DSaveOnlySkipsHTML(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()

	res, err := Create1D(context.Background(), zeroModel(), Options{
		Config:     testConfig("out", 5),
		FS:         fsys,
		Evaluator:  sumSquares(),
		Directions: splitDirections(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("out", LinePlotFile)}, res.Files)
	assert.Len(t, res.Line.Coords, 5)
}

func TestCreate2DWithMeshes(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()
	cfg := testConfig("run", 4)
	*cfg.ZMax = 2

	m := zeroModel()
	baseline := params.TakeSnapshot(m)
	res, err := Create2D(context.Background(), m, Options{
		Config:     cfg,
		FS:         fsys,
		Evaluator:  sumSquares(),
		Directions: splitDirections(),
	})
	require.NoError(t, err)
	assert.True(t, params.TakeSnapshot(m).Identical(baseline))

	assert.Equal(t, []string{
		filepath.Join("run", SurfacePlotFile),
		filepath.Join("run", "losscape_zmax=2_log.vtp"),
		filepath.Join("run", "losscape_zmax=2.vtp"),
	}, res.Files)

	r, c := res.Surface.Losses.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 4, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x, y := res.Surface.X.At(i, j), res.Surface.Y.At(i, j)
			assert.InDelta(t, 3*x*x+4*y*y, res.Surface.Losses.At(i, j), 1e-12)
		}
	}

	data, err := fsys.ReadFile(filepath.Join("run", "losscape_zmax=2.vtp"))
	require.NoError(t, err)
	doc, err := vtp.Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, doc.Piece.NumberOfPoints)
	assert.Equal(t, 9, doc.Piece.NumPolys())

	zv, ok := vtp.Find(doc.Piece.PointData, "zvalue")
	require.True(t, ok)
	_, hi, err := zv.Range()
	require.NoError(t, err)
	assert.Equal(t, 2.0, hi)
}

func TestCreate2DPersistsSurface(t *testing.T) {
	quiet(t)
	out := t.TempDir()
	cfg := testConfig(out, 3)
	*cfg.OutputDB = true
	*cfg.OutputVTP = false

	started := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	res, err := Create2D(context.Background(), zeroModel(), Options{
		Config:     cfg,
		Clock:      timeutil.NewMockClock(started),
		Evaluator:  sumSquares(),
		Directions: splitDirections(),
	})
	require.NoError(t, err)
	dbPath := filepath.Join(out, DataFile)
	assert.Contains(t, res.Files, dbPath)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	meta, surface, err := st.LoadSurface(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "2d", meta.Kind)
	assert.Equal(t, 3, meta.NumPoints)
	assert.True(t, started.Equal(meta.CreatedAt), "created_at %v", meta.CreatedAt)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, res.Surface.Losses.At(i, j), surface.Losses.At(i, j))
			assert.Equal(t, res.Surface.X.At(i, j), surface.X.At(i, j))
			assert.Equal(t, res.Surface.Y.At(i, j), surface.Y.At(i, j))
		}
	}
}

func TestCreate2DGeneratedDirectionsAreSeeded(t *testing.T) {
	quiet(t)
	model := func() *params.MemoryModel {
		return params.NewMemoryModel(params.Full(1, 2, 2), params.Full(0.5, 2))
	}

	run := func(seed uint64) *Result2D {
		cfg := testConfig("out", 3)
		*cfg.Seed = seed
		*cfg.OutputVTP = false
		res, err := Create2D(context.Background(), model(), Options{
			Config:    cfg,
			FS:        fsutil.NewMemoryFileSystem(),
			Evaluator: sumSquares(),
		})
		require.NoError(t, err)
		return res
	}

	a, b := run(11), run(11)
	assert.Equal(t, a.Surface.Losses.RawMatrix().Data, b.Surface.Losses.RawMatrix().Data)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestCreateErrors(t *testing.T) {
	quiet(t)
	ctx := context.Background()

	_, err := Create1D(ctx, zeroModel(), Options{FS: fsutil.NewMemoryFileSystem()})
	assert.ErrorIs(t, err, ErrNoEvaluator)

	cfg := testConfig("out", 1)
	_, err = Create2D(ctx, zeroModel(), Options{Config: cfg, FS: fsutil.NewMemoryFileSystem(), Evaluator: sumSquares()})
	assert.Error(t, err)

	boom := errors.New("diverged")
	fsys := fsutil.NewMemoryFileSystem()
	m := zeroModel()
	baseline := params.TakeSnapshot(m)
	_, err = Create2D(ctx, m, Options{
		Config: testConfig("out", 3),
		FS:     fsys,
		Evaluator: sweep.EvaluatorFunc(func(context.Context, params.Model) (float64, error) {
			return 0, boom
		}),
		Directions: splitDirections(),
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, sweep.ErrEvaluation)
	assert.Empty(t, fsys.Files())
	assert.True(t, params.TakeSnapshot(m).Identical(baseline))
}
