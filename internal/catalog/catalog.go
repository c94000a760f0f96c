package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/forest-guardian/burnsev/internal/raster"
)

type Entry struct {
	Raster     *raster.Raster
	Provenance Provenance
}

// Catalog is an ordered, append-only collection of entries. Filters return new
// catalogs sharing the underlying rasters.
type Catalog struct {
	entries []Entry
}

func New() *Catalog {
	return &Catalog{}
}

func (c *Catalog) Append(r *raster.Raster, p Provenance) error {
	if r == nil {
		return fmt.Errorf("%w: nil raster for %s", ErrMissingProvenance, p.ID())
	}
	if err := p.Validate(); err != nil {
		return err
	}
	c.entries = append(c.entries, Entry{Raster: r, Provenance: p})
	return nil
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) filter(keep func(Entry) bool) *Catalog {
	out := New()
	for _, e := range c.entries {
		if keep(e) {
			out.entries = append(out.entries, e)
		}
	}
	return out
}

func (c *Catalog) FilterByPeriod(name string) *Catalog {
	return c.filter(func(e Entry) bool { return e.Provenance.Period == name })
}

// FilterByRole matches roles exactly, so preFire_mosaic never selects preFire_cm_mosaic.
func (c *Catalog) FilterByRole(roles ...Role) *Catalog {
	return c.filter(func(e Entry) bool {
		for _, r := range roles {
			if e.Provenance.Role == r {
				return true
			}
		}
		return false
	})
}

// FilterByIDContains matches a substring of the composite "<period>_<role>" id.
func (c *Catalog) FilterByIDContains(substr string) *Catalog {
	return c.filter(func(e Entry) bool { return strings.Contains(e.Provenance.ID(), substr) })
}

// FilterByDateRange keeps entries whose TimeStart is in [start, end).
func (c *Catalog) FilterByDateRange(start, end time.Time) *Catalog {
	return c.filter(func(e Entry) bool {
		t := e.Provenance.TimeStart
		return !t.Before(start) && t.Before(end)
	})
}

// Merge returns c followed by others, keeping duplicates.
func (c *Catalog) Merge(others ...*Catalog) *Catalog {
	out := &Catalog{entries: append([]Entry(nil), c.entries...)}
	for _, o := range others {
		out.entries = append(out.entries, o.entries...)
	}
	return out
}

// SortByKey orders entries by period name then role production order.
func (c *Catalog) SortByKey() *Catalog {
	out := &Catalog{entries: append([]Entry(nil), c.entries...)}
	sort.SliceStable(out.entries, func(i, j int) bool {
		a, b := out.entries[i].Provenance, out.entries[j].Provenance
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Role.order() < b.Role.order()
	})
	return out
}

// Get returns the first entry tagged with period and role.
func (c *Catalog) Get(period string, role Role) (Entry, bool) {
	for _, e := range c.entries {
		if e.Provenance.Period == period && e.Provenance.Role == role {
			return e, true
		}
	}
	return Entry{}, false
}

// Periods lists period names in first-seen order.
func (c *Catalog) Periods() []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range c.entries {
		if !seen[e.Provenance.Period] {
			seen[e.Provenance.Period] = true
			names = append(names, e.Provenance.Period)
		}
	}
	return names
}

type ReduceOp string

const (
	Max  ReduceOp = "max"
	Mean ReduceOp = "mean"
	Min  ReduceOp = "min"
)

func ParseReduceOp(s string) (ReduceOp, error) {
	switch op := ReduceOp(strings.ToLower(strings.TrimSpace(s))); op {
	case Max, Mean, Min:
		return op, nil
	}
	return "", fmt.Errorf("unknown reduce operation %q", s)
}

// Reduce combines every raster of the catalog pixel by pixel and band by band,
// ignoring no-data. A pixel with no data in any raster stays no-data.
func (c *Catalog) Reduce(op ReduceOp) (*raster.Raster, error) {
	if len(c.entries) == 0 {
		return nil, ErrEmptyReduction
	}
	var fn func([]float64) float64
	switch op {
	case Max:
		fn = floats.Max
	case Min:
		fn = floats.Min
	case Mean:
		fn = func(v []float64) float64 { return stat.Mean(v, nil) }
	default:
		return nil, fmt.Errorf("unknown reduce operation %q", op)
	}

	rasters := make([]*raster.Raster, len(c.entries))
	for i, e := range c.entries {
		rasters[i] = e.Raster
	}
	if err := raster.CheckGrid(rasters...); err != nil {
		return nil, err
	}

	first := rasters[0]
	out := first.Derive()
	out.ID = string(op)
	values := make([]float64, 0, len(rasters))
	for _, band := range first.Bands {
		data := make([]float64, first.Len())
		inputs := make([][]float64, len(rasters))
		for i, r := range rasters {
			in, ok := r.Band(band.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no band %s", raster.ErrGridMismatch, c.entries[i].Provenance.ID(), band.Name)
			}
			inputs[i] = in
		}
		for px := range data {
			values = values[:0]
			for _, in := range inputs {
				if !raster.IsNoData(in[px]) {
					values = append(values, in[px])
				}
			}
			if len(values) == 0 {
				data[px] = raster.NoData
				continue
			}
			data[px] = fn(values)
		}
		out.Bands = append(out.Bands, raster.Band{Name: band.Name, Data: data})
	}
	return out, nil
}
