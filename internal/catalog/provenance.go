// Package catalog stores the provenance-tagged rasters produced by a run and answers
// the period, role and date queries downstream consumers make.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingProvenance = errors.New("raster has no provenance")
	ErrUnknownRole       = errors.New("unknown raster role")
	ErrEmptyReduction    = errors.New("cannot reduce an empty selection")
)

type Role string

const (
	PreFireMosaic    Role = "preFire_mosaic"
	PreFireCMMosaic  Role = "preFire_cm_mosaic"
	PostFireMosaic   Role = "postFire_mosaic"
	PostFireCMMosaic Role = "postFire_cm_mosaic"
	PreIndex         Role = "preIndex"
	PostIndex        Role = "postIndex"
	DeltaIndex       Role = "deltaIndex"
)

// Roles lists the seven rasters a tagged period contributes, in production order.
func Roles() []Role {
	return []Role{PreFireMosaic, PreFireCMMosaic, PostFireMosaic, PostFireCMMosaic, PreIndex, PostIndex, DeltaIndex}
}

// Terrain roles hold the static topography of an area. They belong to no fire period
// and are not part of Roles.
const (
	ElevationLayer Role = "elevation"
	SlopeLayer     Role = "slope"
	AspectLayer    Role = "aspect"
	HillshadeLayer Role = "hillshade"
)

func TerrainRoles() []Role {
	return []Role{ElevationLayer, SlopeLayer, AspectLayer, HillshadeLayer}
}

func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) order() int {
	for i, known := range Roles() {
		if r == known {
			return i
		}
	}
	return len(Roles())
}

// Mosaic reports whether the role holds a multi-band composite rather than an index.
func (r Role) Mosaic() bool {
	switch r {
	case PreFireMosaic, PreFireCMMosaic, PostFireMosaic, PostFireCMMosaic:
		return true
	}
	return false
}

type Provenance struct {
	Period          string
	Role            Role
	TimeStart       time.Time
	TimeEnd         time.Time
	FirePeriodStart time.Time
	FirePeriodEnd   time.Time
	Sensor          string
	Formula         string
	RunID           string
}

// ID is the composite "<period>_<role>" identifier.
func (p Provenance) ID() string {
	return p.Period + "_" + string(p.Role)
}

func (p Provenance) Validate() error {
	if p.Period == "" || p.Role == "" {
		return fmt.Errorf("%w: period %q role %q", ErrMissingProvenance, p.Period, p.Role)
	}
	if p.TimeStart.IsZero() || p.TimeEnd.IsZero() {
		return fmt.Errorf("%w: %s has no time range", ErrMissingProvenance, p.ID())
	}
	return nil
}

// Metadata flattens the provenance into the key/value pairs written alongside an
// exported raster.
func (p Provenance) Metadata() map[string]string {
	md := map[string]string{
		"period":     p.Period,
		"role":       string(p.Role),
		"time_start": p.TimeStart.Format(time.RFC3339),
		"time_end":   p.TimeEnd.Format(time.RFC3339),
	}
	if !p.FirePeriodStart.IsZero() {
		md["fire_period_start"] = p.FirePeriodStart.Format(time.RFC3339)
		md["fire_period_end"] = p.FirePeriodEnd.Format(time.RFC3339)
	}
	for k, v := range map[string]string{"sensor": p.Sensor, "formula": p.Formula, "run_id": p.RunID} {
		if v != "" {
			md[k] = v
		}
	}
	return md
}
