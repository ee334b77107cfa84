package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/landscape"
	"github.com/banshee-data/losscape/internal/linreg"
	"github.com/banshee-data/losscape/internal/monitoring"
)

func quiet(t *testing.T) {
	t.Helper()
	_, restore := monitoring.Capture()
	t.Cleanup(restore)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "landscape.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"num_points": 10, "zmax": 3, "y_min": -0.5}`), 0o644))

	f := newSweepFlags("2d")
	cfg, err := f.parse([]string{"-config", path, "-points", "4", "-x", "-2:2", "-save-only=false"})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.GetNumPoints())
	assert.Equal(t, 3.0, cfg.GetZMax())
	assert.Equal(t, -2.0, cfg.GetXMin())
	assert.Equal(t, 2.0, cfg.GetXMax())
	assert.Equal(t, -0.5, cfg.GetYMin())
	assert.Equal(t, 1.0, cfg.GetYMax())
	assert.False(t, cfg.GetSaveOnly())
	assert.Equal(t, "cpu", cfg.GetDevice())
}

func TestFlagsDefaults(t *testing.T) {
	cfg, err := newSweepFlags("1d").parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.GetNumPoints())
	assert.Equal(t, 8, cfg.GetNumBatches())
	assert.True(t, cfg.GetSaveOnly())
	assert.Equal(t, -1.0, cfg.GetZMax())
	assert.Nil(t, cfg.NumPoints, "unset flags must not pin config values")
}

func TestFlagsRejectInvalid(t *testing.T) {
	testCases := [][]string{
		{"-x", "abc"},
		{"-y", "1"},
		{"-points", "1"},
		{"-device", "cuda"},
		{"-interp", "2"},
		{"-x", "1:1"},
		{"-config", "missing.yaml"},
	}
	for _, args := range testCases {
		f := newSweepFlags("2d")
		f.fs.SetOutput(&bytes.Buffer{})
		_, err := f.parse(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestRun2DThenInspect(t *testing.T) {
	quiet(t)
	out := t.TempDir()

	err := runSweep(context.Background(), "2d", []string{"-out", out, "-points", "4", "-batches", "2", "-zmax", "50"})
	require.NoError(t, err)

	for _, name := range []string{landscape.SurfacePlotFile, "losscape_zmax=50_log.vtp", "losscape_zmax=50.vtp", landscape.DataFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.NoFileExists(t, filepath.Join(out, landscape.SurfacePageFile))

	var buf bytes.Buffer
	require.NoError(t, runInspect(context.Background(), []string{filepath.Join(out, "losscape_zmax=50.vtp")}, &buf))
	assert.Contains(t, buf.String(), "16 points, 0 verts, 9 polys")
	assert.Contains(t, buf.String(), "averaged zvalue")

	buf.Reset()
	require.NoError(t, runInspect(context.Background(), []string{filepath.Join(out, landscape.DataFile)}, &buf))
	assert.Contains(t, buf.String(), "1 runs")
}

func TestRun1DWithCheckpoint(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "model.json")
	require.NoError(t, linreg.New(3, 2, 1).Save(fsutil.OSFileSystem{}, ckpt))

	out := filepath.Join(dir, "out")
	err := runSweep(context.Background(), "1d", []string{"-out", out, "-points", "5", "-model", ckpt, "-save-only=false"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, landscape.LinePlotFile))
	assert.FileExists(t, filepath.Join(out, landscape.LinePageFile))

	err = runSweep(context.Background(), "1d", []string{"-out", out, "-model", ckpt, "-device", "tpu"})
	assert.Error(t, err)
}

func TestInspectErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, runInspect(context.Background(), nil, &buf))
	assert.Error(t, runInspect(context.Background(), []string{"mesh.obj"}, &buf))
	assert.Error(t, runInspect(context.Background(), []string{filepath.Join(t.TempDir(), "none.db")}, &buf))
}
