package vtp

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Document is a parsed .vtp file.
type Document struct {
	XMLName    xml.Name `xml:"VTKFile"`
	Type       string   `xml:"type,attr"`
	Version    string   `xml:"version,attr"`
	ByteOrder  string   `xml:"byte_order,attr"`
	HeaderType string   `xml:"header_type,attr"`
	Piece      Piece    `xml:"PolyData>Piece"`
}

// Piece holds the counts and arrays of the single mesh piece.
type Piece struct {
	NumberOfPoints int `xml:"NumberOfPoints,attr"`
	NumberOfVerts  int `xml:"NumberOfVerts,attr"`
	NumberOfLines  int `xml:"NumberOfLines,attr"`
	NumberOfStrips int `xml:"NumberOfStrips,attr"`
	// NumberOfPolys is empty in points-only files.
	NumberOfPolys string `xml:"NumberOfPolys,attr"`

	PointData []DataArray `xml:"PointData>DataArray"`
	CellData  []DataArray `xml:"CellData>DataArray"`
	Points    DataArray   `xml:"Points>DataArray"`
	Verts     []DataArray `xml:"Verts>DataArray"`
	Lines     []DataArray `xml:"Lines>DataArray"`
	Strips    []DataArray `xml:"Strips>DataArray"`
	Polys     []DataArray `xml:"Polys>DataArray"`
}

// DataArray is one ascii array.
type DataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr"`
	Format             string `xml:"format,attr"`
	RangeMin           string `xml:"RangeMin,attr"`
	RangeMax           string `xml:"RangeMax,attr"`
	Text               string `xml:",chardata"`
}

// Read parses a document written by Write.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("vtp: decode: %w", err)
	}
	if doc.Type != "PolyData" {
		return nil, formatErrorf("unsupported file type %q", doc.Type)
	}
	return &doc, nil
}

// NumPolys returns the quad count, or 0 for a points-only file.
func (p Piece) NumPolys() int {
	n, err := strconv.Atoi(p.NumberOfPolys)
	if err != nil {
		return 0
	}
	return n
}

// Find returns the array with the given name from arrays.
func Find(arrays []DataArray, name string) (DataArray, bool) {
	for _, a := range arrays {
		if a.Name == name {
			return a, true
		}
	}
	return DataArray{}, false
}

// Floats parses the array body.
func (a DataArray) Floats() ([]float64, error) {
	fields := strings.Fields(a.Text)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("vtp: %s[%d]: %w", a.Name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Ints parses the array body as integers.
func (a DataArray) Ints() ([]int, error) {
	fields := strings.Fields(a.Text)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("vtp: %s[%d]: %w", a.Name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Range parses RangeMin and RangeMax.
func (a DataArray) Range() (lo, hi float64, err error) {
	if lo, err = strconv.ParseFloat(a.RangeMin, 64); err != nil {
		return 0, 0, fmt.Errorf("vtp: %s RangeMin: %w", a.Name, err)
	}
	if hi, err = strconv.ParseFloat(a.RangeMax, 64); err != nil {
		return 0, 0, fmt.Errorf("vtp: %s RangeMax: %w", a.Name, err)
	}
	return lo, hi, nil
}
