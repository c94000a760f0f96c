// Package geo holds the area of interest shared read-only by every period run.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidAOI = errors.New("invalid area of interest")

type AreaOfInterest struct {
	polygons orb.MultiPolygon
	bound    orb.Bound
}

// NewAOI accepts polygonal geometries only.
func NewAOI(g orb.Geometry) (*AreaOfInterest, error) {
	var mp orb.MultiPolygon
	switch geom := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{geom}
	case orb.MultiPolygon:
		mp = geom
	case orb.Bound:
		mp = orb.MultiPolygon{geom.ToPolygon()}
	case orb.Collection:
		for _, member := range geom {
			sub, err := NewAOI(member)
			if err != nil {
				return nil, err
			}
			mp = append(mp, sub.polygons...)
		}
	default:
		return nil, fmt.Errorf("%w: %T is not polygonal", ErrInvalidAOI, g)
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrInvalidAOI)
	}
	mp = orb.Clone(mp).(orb.MultiPolygon)
	return &AreaOfInterest{polygons: mp, bound: mp.Bound()}, nil
}

// Rect is a rectangular AOI, mostly handy for synthetic scenes.
func Rect(minX, minY, maxX, maxY float64) *AreaOfInterest {
	aoi, _ := NewAOI(orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}})
	return aoi
}

func (a *AreaOfInterest) Contains(p orb.Point) bool {
	if !a.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(a.polygons, p)
}

func (a *AreaOfInterest) Bound() orb.Bound {
	return a.bound
}

func (a *AreaOfInterest) Intersects(b orb.Bound) bool {
	return a.bound.Intersects(b)
}

// Geometry returns a copy of the AOI polygons.
func (a *AreaOfInterest) Geometry() orb.MultiPolygon {
	return orb.Clone(a.polygons).(orb.MultiPolygon)
}

func (a *AreaOfInterest) GeoJSON() ([]byte, error) {
	var g orb.Geometry = a.polygons
	if len(a.polygons) == 1 {
		g = a.polygons[0]
	}
	return geojson.NewGeometry(g).MarshalJSON()
}

// LoadGeoJSON reads an AOI from a GeoJSON file holding a geometry, a feature or a
// feature collection. With a non-empty property, only features whose property equals
// value are kept; otherwise every feature is part of the AOI.
func LoadGeoJSON(path, property, value string) (*AreaOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AOI file: %w", err)
	}
	return ParseGeoJSON(data, property, value)
}

func ParseGeoJSON(data []byte, property, value string) (*AreaOfInterest, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAOI, err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAOI, err)
		}
		var collection orb.Collection
		for _, f := range fc.Features {
			if property != "" && fmt.Sprint(f.Properties[property]) != value {
				continue
			}
			collection = append(collection, f.Geometry)
		}
		if len(collection) == 0 {
			return nil, fmt.Errorf("%w: no feature with %s=%s", ErrInvalidAOI, property, value)
		}
		return NewAOI(collection)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAOI, err)
		}
		return NewAOI(f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAOI, err)
		}
		return NewAOI(g.Geometry())
	}
}
