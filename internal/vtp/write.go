package vtp

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/monitoring"
)

// Filename returns the file name for opts: "losscape", then "_zmax=<zmax>"
// when clamping, then "_log" when log-scaling, then ".vtp".
func Filename(opts Options) string {
	name := "losscape"
	if opts.ZMax > 0 {
		name += "_zmax=" + strconv.FormatFloat(opts.ZMax, 'f', -1, 64)
	}
	if opts.Log {
		name += "_log"
	}
	return name + ".vtp"
}

// Encode renders the mesh to w in a single write.
func (m *Mesh) Encode(w io.Writer, opts Options) error {
	var b bytes.Buffer
	m.render(&b, opts.normalized())
	if _, err := w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("vtp: write: %w", err)
	}
	return nil
}

// Write builds the mesh for x, y and z and writes it to
// opts.OutputDir/Filename(opts). The file appears only once it is complete.
func Write(fsys fsutil.FileSystem, x, y, z mat.Matrix, opts Options) (string, error) {
	opts = opts.normalized()
	m, err := Build(x, y, z, opts)
	if err != nil {
		return "", err
	}

	var b bytes.Buffer
	m.render(&b, opts)

	path := filepath.Join(opts.OutputDir, Filename(opts))
	if err := fsutil.WriteFileAtomic(fsys, path, b.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("vtp: %w", err)
	}
	monitoring.Logf("[vtp] wrote %s (%d points, %dx%d grid, %d polys)",
		path, m.NumPoints(), m.Size, m.Size, m.NumPolys())
	return path, nil
}

// WritePair writes the log-scaled file and then the linear one, both with
// the same clamp and resampling. It returns the paths in that order.
func WritePair(fsys fsutil.FileSystem, x, y, z mat.Matrix, opts Options) ([]string, error) {
	paths := make([]string, 0, 2)
	for _, log := range []bool{true, false} {
		o := opts
		o.Log = log
		path, err := Write(fsys, x, y, z, o)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (m *Mesh) render(b *bytes.Buffer, opts Options) {
	points, polys := m.NumPoints(), m.NumPolys()
	zMin, zMax := minOf(m.Zs), maxOf(m.Zs)
	lo := minOf([]float64{minOf(m.Xs), minOf(m.Ys), zMin})
	hi := maxOf([]float64{maxOf(m.Xs), maxOf(m.Ys), zMax})

	b.WriteString(`<VTKFile type="PolyData" version="1.0" byte_order="LittleEndian" header_type="UInt64">` + "\n")
	b.WriteString("  <PolyData>\n")
	switch {
	case opts.ShowPoints && opts.ShowPolys:
		fmt.Fprintf(b, `    <Piece NumberOfPoints="%d" NumberOfVerts="%d" NumberOfLines="0" NumberOfStrips="0" NumberOfPolys="%d">`+"\n",
			points, points, polys)
	case opts.ShowPolys:
		fmt.Fprintf(b, `    <Piece NumberOfPoints="%d" NumberOfVerts="0" NumberOfLines="0" NumberOfStrips="0" NumberOfPolys="%d">`+"\n",
			points, polys)
	default:
		fmt.Fprintf(b, `    <Piece NumberOfPoints="%d" NumberOfVerts="%d" NumberOfLines="0" NumberOfStrips="0" NumberOfPolys="">`+"\n",
			points, points)
	}

	b.WriteString("      <PointData>\n")
	floatArrayHeader(b, "zvalue", 1, zMin, zMax)
	writeWrapped(b, points, 6, func(b *bytes.Buffer, i int) {
		b.WriteString(formatFloat(m.Zs[i]))
	})
	b.WriteString("        </DataArray>\n")
	b.WriteString("      </PointData>\n")

	b.WriteString("      <CellData>\n")
	if opts.ShowPolys && !opts.ShowPoints {
		floatArrayHeader(b, "averaged zvalue", 1, minOf(m.Averages), maxOf(m.Averages))
		writeWrapped(b, polys, 6, func(b *bytes.Buffer, i int) {
			b.WriteString(formatFloat(m.Averages[i]))
		})
		b.WriteString("        </DataArray>\n")
	}
	b.WriteString("      </CellData>\n")

	b.WriteString("      <Points>\n")
	floatArrayHeader(b, "Points", 3, lo, hi)
	writeWrapped(b, points, 2, func(b *bytes.Buffer, i int) {
		b.WriteString(formatFloat(m.Xs[i]))
		b.WriteByte(' ')
		b.WriteString(formatFloat(m.Ys[i]))
		b.WriteByte(' ')
		b.WriteString(formatFloat(m.Zs[i]))
	})
	b.WriteString("        </DataArray>\n")
	b.WriteString("      </Points>\n")

	b.WriteString("      <Verts>\n")
	intArrayHeader(b, "connectivity", 0, points-1)
	if opts.ShowPoints {
		writeWrapped(b, points, 6, func(b *bytes.Buffer, i int) {
			b.WriteString(strconv.Itoa(i))
		})
	}
	b.WriteString("        </DataArray>\n")
	intArrayHeader(b, "offsets", 1, points)
	if opts.ShowPoints {
		writeWrapped(b, points, 6, func(b *bytes.Buffer, i int) {
			b.WriteString(strconv.Itoa(i + 1))
		})
	}
	b.WriteString("        </DataArray>\n")
	b.WriteString("      </Verts>\n")

	for _, section := range []string{"Lines", "Strips"} {
		b.WriteString("      <" + section + ">\n")
		intArrayHeader(b, "connectivity", 0, polys-1)
		b.WriteString("        </DataArray>\n")
		intArrayHeader(b, "offsets", 1, polys)
		b.WriteString("        </DataArray>\n")
		b.WriteString("      </" + section + ">\n")
	}

	b.WriteString("      <Polys>\n")
	intArrayHeader(b, "connectivity", 0, polys-1)
	if opts.ShowPolys {
		writeWrapped(b, polys, 2, func(b *bytes.Buffer, k int) {
			q := m.Quad(k)
			fmt.Fprintf(b, "%d %d %d %d", q[0], q[1], q[2], q[3])
		})
	}
	b.WriteString("        </DataArray>\n")
	intArrayHeader(b, "offsets", 1, polys)
	if opts.ShowPolys {
		writeWrapped(b, polys, 6, func(b *bytes.Buffer, k int) {
			b.WriteString(strconv.Itoa((k + 1) * 4))
		})
	}
	b.WriteString("        </DataArray>\n")
	b.WriteString("      </Polys>\n")

	b.WriteString("    </Piece>\n")
	b.WriteString("  </PolyData>\n")
	b.WriteString("</VTKFile>\n")
}

func floatArrayHeader(b *bytes.Buffer, name string, components int, lo, hi float64) {
	fmt.Fprintf(b, `        <DataArray type="Float32" Name="%s" NumberOfComponents="%d" format="ascii" RangeMin="%s" RangeMax="%s">`+"\n",
		name, components, formatFloat(lo), formatFloat(hi))
}

func intArrayHeader(b *bytes.Buffer, name string, lo, hi int) {
	fmt.Fprintf(b, `        <DataArray type="Int64" Name="%s" format="ascii" RangeMin="%d" RangeMax="%d">`+"\n",
		name, lo, hi)
}
