package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LandscapeConfig represents the settings for one landscape computation.
// Every field is optional; the Get* accessors supply the defaults so a
// partial JSON file (or none at all) is valid.
type LandscapeConfig struct {
	// Output
	OutputDir *string `json:"output_dir,omitempty"`
	SaveOnly  *bool   `json:"save_only,omitempty"`  // skip the interactive HTML pages
	OutputVTP *bool   `json:"output_vtp,omitempty"` // write the two .vtp meshes (2D only)
	OutputDB  *bool   `json:"output_db,omitempty"`  // persist raw X/Y/losses (2D only)

	// Grid bounds. Steps multiply the sampled directions.
	XMin      *float64 `json:"x_min,omitempty"`
	XMax      *float64 `json:"x_max,omitempty"`
	YMin      *float64 `json:"y_min,omitempty"`
	YMax      *float64 `json:"y_max,omitempty"`
	NumPoints *int     `json:"num_points,omitempty"`

	// Loss evaluation
	NumBatches *int `json:"num_batches,omitempty"`

	// Mesh export
	ZMax   *float64 `json:"zmax,omitempty"`   // <= 0 disables clamping
	Interp *int     `json:"interp,omitempty"` // <= 0 disables upsampling

	// Direction sampling
	Seed         *uint64 `json:"seed,omitempty"`
	IgnoreBiasBN *bool   `json:"ignore_bias_bn,omitempty"`

	// Execution target handed to the model loader ("cpu").
	Device *string `json:"device,omitempty"`
}

// SupportedDevices lists the execution targets the model loader accepts.
var SupportedDevices = []string{"cpu"}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyLandscapeConfig returns a LandscapeConfig with all fields set to nil.
func EmptyLandscapeConfig() *LandscapeConfig {
	return &LandscapeConfig{}
}

// DefaultLandscapeConfig returns a config with every field populated from
// the accessor defaults.
func DefaultLandscapeConfig() *LandscapeConfig {
	c := EmptyLandscapeConfig()
	return &LandscapeConfig{
		OutputDir:    ptrString(c.GetOutputDir()),
		SaveOnly:     ptrBool(c.GetSaveOnly()),
		OutputVTP:    ptrBool(c.GetOutputVTP()),
		OutputDB:     ptrBool(c.GetOutputDB()),
		XMin:         ptrFloat64(c.GetXMin()),
		XMax:         ptrFloat64(c.GetXMax()),
		YMin:         ptrFloat64(c.GetYMin()),
		YMax:         ptrFloat64(c.GetYMax()),
		NumPoints:    ptrInt(c.GetNumPoints()),
		NumBatches:   ptrInt(c.GetNumBatches()),
		ZMax:         ptrFloat64(c.GetZMax()),
		Interp:       ptrInt(c.GetInterp()),
		Seed:         ptrUint64(c.GetSeed()),
		IgnoreBiasBN: ptrBool(c.GetIgnoreBiasBN()),
		Device:       ptrString(c.GetDevice()),
	}
}

// LoadConfig loads a LandscapeConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*LandscapeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLandscapeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *LandscapeConfig) Validate() error {
	if c.NumPoints != nil && *c.NumPoints < 2 {
		return fmt.Errorf("num_points must be at least 2, got %d", *c.NumPoints)
	}
	if c.NumBatches != nil && *c.NumBatches < 1 {
		return fmt.Errorf("num_batches must be positive, got %d", *c.NumBatches)
	}
	if c.GetXMin() == c.GetXMax() {
		return fmt.Errorf("x_min and x_max must differ, both are %g", c.GetXMin())
	}
	if c.GetYMin() == c.GetYMax() {
		return fmt.Errorf("y_min and y_max must differ, both are %g", c.GetYMin())
	}
	// Cubic upsampling needs at least four samples per axis.
	if c.Interp != nil && *c.Interp > 0 && *c.Interp < 4 {
		return fmt.Errorf("interp must be at least 4 when enabled, got %d", *c.Interp)
	}
	if c.Device != nil {
		if !IsSupportedDevice(*c.Device) {
			return fmt.Errorf("unsupported device %q (supported: %s)", *c.Device, strings.Join(SupportedDevices, ", "))
		}
	}
	return nil
}

// IsSupportedDevice reports whether d names a known execution target.
func IsSupportedDevice(d string) bool {
	for _, s := range SupportedDevices {
		if d == s {
			return true
		}
	}
	return false
}

// GetOutputDir returns the output directory or the current directory.
func (c *LandscapeConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "."
	}
	return *c.OutputDir
}

// GetSaveOnly returns save_only or the default.
func (c *LandscapeConfig) GetSaveOnly() bool {
	if c.SaveOnly == nil {
		return true
	}
	return *c.SaveOnly
}

// GetOutputVTP returns output_vtp or the default.
func (c *LandscapeConfig) GetOutputVTP() bool {
	if c.OutputVTP == nil {
		return true
	}
	return *c.OutputVTP
}

// GetOutputDB returns output_db or the default.
func (c *LandscapeConfig) GetOutputDB() bool {
	if c.OutputDB == nil {
		return true
	}
	return *c.OutputDB
}

// GetXMin returns x_min or the default.
func (c *LandscapeConfig) GetXMin() float64 {
	if c.XMin == nil {
		return -1
	}
	return *c.XMin
}

// GetXMax returns x_max or the default.
func (c *LandscapeConfig) GetXMax() float64 {
	if c.XMax == nil {
		return 1
	}
	return *c.XMax
}

// GetYMin returns y_min or the default.
func (c *LandscapeConfig) GetYMin() float64 {
	if c.YMin == nil {
		return -1
	}
	return *c.YMin
}

// GetYMax returns y_max or the default.
func (c *LandscapeConfig) GetYMax() float64 {
	if c.YMax == nil {
		return 1
	}
	return *c.YMax
}

// GetNumPoints returns num_points or the default.
func (c *LandscapeConfig) GetNumPoints() int {
	if c.NumPoints == nil {
		return 50
	}
	return *c.NumPoints
}

// GetNumBatches returns num_batches or the default.
func (c *LandscapeConfig) GetNumBatches() int {
	if c.NumBatches == nil {
		return 8
	}
	return *c.NumBatches
}

// GetZMax returns zmax or -1 (no clamp).
func (c *LandscapeConfig) GetZMax() float64 {
	if c.ZMax == nil {
		return -1
	}
	return *c.ZMax
}

// GetInterp returns interp or -1 (no upsampling).
func (c *LandscapeConfig) GetInterp() int {
	if c.Interp == nil {
		return -1
	}
	return *c.Interp
}

// GetSeed returns the direction sampling seed or 0.
func (c *LandscapeConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetIgnoreBiasBN returns ignore_bias_bn or the default.
func (c *LandscapeConfig) GetIgnoreBiasBN() bool {
	if c.IgnoreBiasBN == nil {
		return true
	}
	return *c.IgnoreBiasBN
}

// GetDevice returns the execution target or "cpu".
func (c *LandscapeConfig) GetDevice() string {
	if c.Device == nil || *c.Device == "" {
		return "cpu"
	}
	return *c.Device
}
