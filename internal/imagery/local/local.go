// Package local serves scenes from a directory of GeoTIFF files laid out as
// <root>/<collection>/<YYYY-MM-DD>[_suffix].tif, where slashes in the collection id
// become underscores.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/forest-guardian/burnsev/internal/utils"
)

// AcquisitionKey is the metadata item holding an RFC 3339 acquisition time. Files
// without it are dated by their name.
const AcquisitionKey = "ACQUISITION_TIME"

type Source struct {
	root    string
	profile *sensor.Profile
}

var _ imagery.Source = (*Source)(nil)

func New(root string, profile *sensor.Profile) *Source {
	return &Source{root: root, profile: profile}
}

// CollectionDir is where scenes of collection are looked up.
func CollectionDir(root, collection string) string {
	return filepath.Join(root, strings.ReplaceAll(collection, "/", "_"))
}

func (s *Source) Query(ctx context.Context, collection string, window period.DateRange, aoi *geo.AreaOfInterest) ([]*raster.Raster, error) {
	dir := CollectionDir(s.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	byDate := map[time.Time][]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".tif") {
			continue
		}
		date, ok := parseDate(name)
		if !ok {
			log.Debugw("skipping scene without date", "file", name)
			continue
		}
		if !window.Contains(date) {
			continue
		}
		byDate[date] = append(byDate[date], filepath.Join(dir, name))
	}

	opts := geotiff.ReadOptions{
		BandNames: append(s.profile.Channels(), s.profile.QABand),
		QABand:    s.profile.QABand,
	}

	var scenes []*raster.Raster
	for _, date := range utils.GetSortedKeys(byDate, true) {
		paths := byDate[date]
		sort.Strings(paths)
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, imagery.TimeoutError(err)
			}
			scene, err := geotiff.Read(path, opts)
			if err != nil {
				return nil, err
			}
			if aoi != nil && !aoi.Intersects(scene.Bound()) {
				continue
			}
			scene.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			scene.Acquired = date
			if acquired, err := geotiff.ReadMetadata(path, AcquisitionKey); err == nil && acquired != "" {
				if t, err := time.Parse(time.RFC3339, acquired); err == nil {
					scene.Acquired = t
				}
			}
			if !window.Contains(scene.Acquired) {
				log.Debugw("skipping scene acquired outside window", "file", path, "acquired", scene.Acquired, "window", window)
				continue
			}
			scenes = append(scenes, scene)
		}
	}
	return scenes, nil
}

func parseDate(name string) (time.Time, bool) {
	if len(name) < len(period.DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(period.DateLayout, name[:len(period.DateLayout)])
	return t, err == nil
}
