// Package config reads the YAML pipeline definition and turns it into an explicit
// pipeline.Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

const (
	SourceDirectory  = "directory"
	SourceCopernicus = "copernicus"

	DestinationFile = "file"
	DestinationS3   = "s3"
)

type File struct {
	Sensor       string     `yaml:"sensor"`
	Formula      string     `yaml:"formula"`
	AOI          AOI        `yaml:"aoi"`
	FetchTimeout string     `yaml:"fetch_timeout,omitempty"`
	Workers      int        `yaml:"workers,omitempty"`
	Source       Source     `yaml:"source"`
	Periods      []Period   `yaml:"periods"`
	Display      Display    `yaml:"display,omitempty"`
	Export       Export     `yaml:"export,omitempty"`
	Timelapse    Timelapse  `yaml:"timelapse,omitempty"`
	Aggregate    *Aggregate `yaml:"aggregate,omitempty"`
	Reports      string     `yaml:"reports,omitempty"`
	Terrain      *Terrain   `yaml:"terrain,omitempty"`

	dir string
}

type AOI struct {
	Path     string `yaml:"path"`
	Property string `yaml:"property,omitempty"`
	Value    string `yaml:"value,omitempty"`
}

type Source struct {
	Type string `yaml:"type"`
	Path string `yaml:"path,omitempty"`
	// Cache is the directory of the catalog search cache, copernicus only.
	Cache string `yaml:"cache,omitempty"`
}

type Period struct {
	Name string    `yaml:"name"`
	Pre  [2]string `yaml:"pre"`
	Post [2]string `yaml:"post"`
}

type Display struct {
	Periods []string `yaml:"periods,omitempty"`
	Roles   []string `yaml:"roles,omitempty"`
	Output  string   `yaml:"output,omitempty"`
	// Format is png (default) or jpg.
	Format string `yaml:"format,omitempty"`
}

// Terrain derives slope, aspect and hillshade of the AOI from a local elevation
// model. Name labels the exports, "aoi" when empty.
type Terrain struct {
	DEM  string `yaml:"dem"`
	Name string `yaml:"name,omitempty"`
}

type Export struct {
	Periods     []string `yaml:"periods,omitempty"`
	Roles       []string `yaml:"roles,omitempty"`
	Destination string   `yaml:"destination,omitempty"`
	Path        string   `yaml:"path,omitempty"`
	Bucket      string   `yaml:"bucket,omitempty"`
}

type Timelapse struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
	FPS     int32  `yaml:"fps,omitempty"`
}

type Aggregate struct {
	Roles []string `yaml:"roles"`
	Start string   `yaml:"start"`
	End   string   `yaml:"end"`
	Op    string   `yaml:"op"`
	Name  string   `yaml:"name,omitempty"`
}

// Load reads a pipeline definition, expanding ${VAR} references from the environment.
// Relative paths in the file resolve against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the shape of the file. Sensor, formula and role names are checked
// against the registries so a broken definition never reaches a run.
func (f *File) Validate() error {
	if _, err := sensor.ParseID(f.Sensor); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	if _, err := index.ParseFormula(f.Formula); err != nil {
		return fmt.Errorf("formula: %w", err)
	}
	if strings.TrimSpace(f.AOI.Path) == "" {
		return errors.New("aoi.path is required")
	}
	if f.FetchTimeout != "" {
		if _, err := time.ParseDuration(f.FetchTimeout); err != nil {
			return fmt.Errorf("fetch_timeout: %w", err)
		}
	}
	switch f.Source.Type {
	case SourceDirectory:
		if f.Source.Path == "" {
			return errors.New("source.path is required for a directory source")
		}
	case SourceCopernicus:
	default:
		return fmt.Errorf("source.type unsupported: %q", f.Source.Type)
	}
	if len(f.Periods) == 0 {
		return errors.New("periods must be non-empty")
	}
	for _, roles := range [][]string{f.Display.Roles, f.Export.Roles} {
		if _, err := parseRoles(roles); err != nil {
			return err
		}
	}
	switch f.Export.Destination {
	case "", DestinationFile, DestinationS3:
	default:
		return fmt.Errorf("export.destination unsupported: %q", f.Export.Destination)
	}
	if f.Export.Destination == DestinationS3 && f.Export.Bucket == "" {
		return errors.New("export.bucket is required for s3 exports")
	}
	if f.Aggregate != nil {
		if _, err := f.Aggregate.Query(); err != nil {
			return err
		}
	}
	switch strings.ToLower(f.Display.Format) {
	case "", "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("display.format unsupported: %q", f.Display.Format)
	}
	if f.Terrain != nil && strings.TrimSpace(f.Terrain.DEM) == "" {
		return errors.New("terrain.dem is required")
	}
	return nil
}

// PreviewExt is the file extension of display previews.
func (f *File) PreviewExt() string {
	switch strings.ToLower(f.Display.Format) {
	case "jpg", "jpeg":
		return ".jpg"
	}
	return ".png"
}

func (t *Terrain) AreaName() string {
	if t.Name == "" {
		return "aoi"
	}
	return t.Name
}

func parseRoles(names []string) ([]catalog.Role, error) {
	roles := make([]catalog.Role, 0, len(names))
	for _, n := range names {
		r, err := catalog.ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// Resolve makes a path from the file relative to the file's directory.
func (f *File) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || f.dir == "" {
		return path
	}
	return filepath.Join(f.dir, path)
}

func (f *File) Profile() (*sensor.Profile, error) {
	id, err := sensor.ParseID(f.Sensor)
	if err != nil {
		return nil, err
	}
	return sensor.Lookup(id)
}

func (f *File) BuildPeriods() ([]period.Period, error) {
	periods := make([]period.Period, 0, len(f.Periods))
	for i, p := range f.Periods {
		built, err := period.Parse(p.Name, p.Pre[0], p.Pre[1], p.Post[0], p.Post[1])
		if err != nil {
			return nil, fmt.Errorf("periods[%d]: %w", i, err)
		}
		periods = append(periods, built)
	}
	return periods, nil
}

// Build assembles the pipeline configuration, loading the AOI from disk.
func (f *File) Build(runID string) (pipeline.Config, error) {
	profile, err := f.Profile()
	if err != nil {
		return pipeline.Config{}, err
	}
	formula, err := index.ParseFormula(f.Formula)
	if err != nil {
		return pipeline.Config{}, err
	}
	aoi, err := geo.LoadGeoJSON(f.Resolve(f.AOI.Path), f.AOI.Property, f.AOI.Value)
	if err != nil {
		return pipeline.Config{}, err
	}
	periods, err := f.BuildPeriods()
	if err != nil {
		return pipeline.Config{}, err
	}
	var timeout time.Duration
	if f.FetchTimeout != "" {
		timeout, _ = time.ParseDuration(f.FetchTimeout)
	}

	cfg := pipeline.Config{
		Profile:      profile,
		AOI:          aoi,
		Periods:      periods,
		Formula:      formula,
		FetchTimeout: timeout,
		Workers:      f.Workers,
		RunID:        runID,
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

func (f *File) DisplaySelection() catalog.Selection {
	roles, _ := parseRoles(f.Display.Roles)
	return catalog.Selection{Periods: f.Display.Periods, Roles: roles}
}

func (f *File) ExportSelection() catalog.Selection {
	roles, _ := parseRoles(f.Export.Roles)
	return catalog.Selection{Periods: f.Export.Periods, Roles: roles}
}

func (a *Aggregate) Query() (pipeline.AggregateQuery, error) {
	roles, err := parseRoles(a.Roles)
	if err != nil {
		return pipeline.AggregateQuery{}, fmt.Errorf("aggregate.roles: %w", err)
	}
	if len(roles) == 0 {
		roles = []catalog.Role{catalog.DeltaIndex}
	}
	window, err := period.ParseRange(a.Start, a.End)
	if err != nil {
		return pipeline.AggregateQuery{}, fmt.Errorf("aggregate: %w", err)
	}
	op := catalog.Max
	if a.Op != "" {
		if op, err = catalog.ParseReduceOp(a.Op); err != nil {
			return pipeline.AggregateQuery{}, fmt.Errorf("aggregate.op: %w", err)
		}
	}
	return pipeline.AggregateQuery{Roles: roles, Start: window.Start, End: window.End, Op: op}, nil
}
