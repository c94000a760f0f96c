// Package geotiff moves rasters in and out of GeoTIFF files through GDAL.
package geotiff

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/utils"
)

var ErrBandCount = errors.New("unexpected number of bands")

var register sync.Once

func Init() {
	register.Do(godal.RegisterAll)
}

// ReadOptions name the bands of files lacking band descriptions. The band described
// (or positioned) as QABand becomes the raster QA channel.
type ReadOptions struct {
	BandNames []string
	QABand    string
}

func open(path string) (*godal.Dataset, error) {
	Init()
	return godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
}

func Read(path string, opts ReadOptions) (*raster.Raster, error) {
	var r *raster.Raster
	err := utils.WithGDAL(func() error {
		ds, err := open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()
		r, err = readDataset(ds, opts)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return nil
	})
	return r, err
}

// Decode reads an in-memory GeoTIFF, as returned by the Copernicus process API.
func Decode(data []byte, opts ReadOptions) (*raster.Raster, error) {
	tmp, err := os.CreateTemp("", "burnsev-*.tif")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return Read(tmp.Name(), opts)
}

func readDataset(ds *godal.Dataset, opts ReadOptions) (*raster.Raster, error) {
	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	bands := ds.Bands()

	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: file has no bands", ErrBandCount)
	}

	names := make([]string, len(bands))
	described := true
	for i, band := range bands {
		names[i] = band.Description()
		if names[i] == "" {
			described = false
		}
	}
	if !described {
		if len(opts.BandNames) != len(bands) {
			return nil, fmt.Errorf("%w: file has %d undescribed bands, expected %d", ErrBandCount, len(bands), len(opts.BandNames))
		}
		copy(names, opts.BandNames)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get geotransform: %w", err)
	}
	out := raster.New(width, height, gt)
	out.Projection = ds.Projection()

	for i, band := range bands {
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %s: %w", names[i], err)
		}
		if nd, ok := band.NoData(); ok && !math.IsNaN(nd) {
			for j, v := range data {
				if v == nd {
					data[j] = raster.NoData
				}
			}
		}
		if opts.QABand != "" && names[i] == opts.QABand {
			out.QA = make([]uint16, len(data))
			for j, v := range data {
				if !raster.IsNoData(v) {
					out.QA[j] = uint16(v)
				}
			}
			continue
		}
		out.Bands = append(out.Bands, raster.Band{Name: names[i], Data: data})
	}
	if opts.QABand != "" && out.QA == nil {
		return nil, fmt.Errorf("%w: no %s band", ErrBandCount, opts.QABand)
	}
	return out, nil
}

// Write stores r as a float64 GeoTIFF with one described band per raster band,
// followed by the QA channel when qaBand is set and r carries one. Metadata is written
// to the default domain.
func Write(path string, r *raster.Raster, qaBand string, metadata map[string]string) error {
	Init()
	names := r.BandNames()
	withQA := qaBand != "" && r.QA != nil
	if withQA {
		names = append(names, qaBand)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: nothing to write", ErrBandCount)
	}

	return utils.WithGDAL(func() error {
		ds, err := godal.Create(godal.GTiff, path, len(names), godal.Float64, r.Width, r.Height,
			godal.CreationOption("TILED=YES", "COMPRESS=DEFLATE"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := ds.SetGeoTransform(r.GeoTransform); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set geotransform: %w", err)
		}
		if r.Projection != "" {
			if err := ds.SetProjection(r.Projection); err != nil {
				ds.Close()
				return fmt.Errorf("failed to set projection: %w", err)
			}
		}

		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := ds.SetMetadata(k, metadata[k]); err != nil {
				ds.Close()
				return fmt.Errorf("failed to set metadata %s: %w", k, err)
			}
		}

		bands := ds.Bands()
		for i, name := range names {
			var data []float64
			if withQA && i == len(names)-1 {
				data = make([]float64, len(r.QA))
				for j, qa := range r.QA {
					data[j] = float64(qa)
				}
			} else {
				data = r.Bands[i].Data
			}
			if err := bands[i].SetDescription(name); err != nil {
				ds.Close()
				return fmt.Errorf("failed to describe band %s: %w", name, err)
			}
			if err := bands[i].SetNoData(math.NaN()); err != nil {
				ds.Close()
				return fmt.Errorf("failed to set nodata on %s: %w", name, err)
			}
			if err := bands[i].Write(0, 0, data, r.Width, r.Height); err != nil {
				ds.Close()
				return fmt.Errorf("failed to write band %s: %w", name, err)
			}
		}
		return ds.Close()
	})
}

// Encode returns the GeoTIFF bytes Write would produce.
func Encode(r *raster.Raster, qaBand string, metadata map[string]string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "burnsev-encode-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := dir + string(os.PathSeparator) + "raster.tif"
	if err := Write(path, r, qaBand, metadata); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ReadMetadata returns the default-domain value stored under key.
func ReadMetadata(path, key string) (string, error) {
	var value string
	err := utils.WithGDAL(func() error {
		ds, err := open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()
		value = ds.Metadata(key)
		return nil
	})
	return value, err
}
