package output

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/severity"
)

type SummaryRow struct {
	RunID         string  `csv:"run_id"`
	Period        string  `csv:"period"`
	State         string  `csv:"state"`
	Reason        string  `csv:"reason"`
	Rasters       int     `csv:"rasters"`
	PreScenes     int     `csv:"pre_scenes"`
	PostScenes    int     `csv:"post_scenes"`
	ValidPixels   int     `csv:"valid_pixels"`
	ValidFraction float64 `csv:"valid_fraction"`
	Seconds       float64 `csv:"seconds"`
}

type HistogramRow struct {
	Period   string  `csv:"period"`
	Class    int     `csv:"class"`
	Label    string  `csv:"label"`
	Pixels   int     `csv:"pixels"`
	Fraction float64 `csv:"fraction"`
}

type StatsRow struct {
	Period string  `csv:"period"`
	Valid  int     `csv:"valid_pixels"`
	Min    float64 `csv:"min"`
	Max    float64 `csv:"max"`
	Mean   float64 `csv:"mean"`
	StdDev float64 `csv:"std_dev"`
	Median float64 `csv:"median"`
}

func SummaryRows(s pipeline.Summary) []SummaryRow {
	rows := make([]SummaryRow, 0, len(s.Periods))
	for _, p := range s.Periods {
		rows = append(rows, SummaryRow{
			RunID:         s.RunID,
			Period:        p.Period,
			State:         string(p.State),
			Reason:        p.Reason(),
			Rasters:       p.Rasters,
			PreScenes:     p.PreScenes,
			PostScenes:    p.PostScenes,
			ValidPixels:   p.ValidPixels,
			ValidFraction: p.ValidFraction(),
			Seconds:       p.Duration.Seconds(),
		})
	}
	return rows
}

// HistogramRows counts severity classes of every deltaIndex in cat.
func HistogramRows(cat *catalog.Catalog) []HistogramRow {
	var rows []HistogramRow
	for _, e := range cat.FilterByRole(catalog.DeltaIndex).Entries() {
		h := severity.NewHistogram(severity.ClassifyRaster(e.Raster))
		for _, c := range severity.Classes() {
			rows = append(rows, HistogramRow{
				Period:   e.Provenance.Period,
				Class:    int(c),
				Label:    c.Label(),
				Pixels:   h.Counts[c],
				Fraction: h.Fraction(c),
			})
		}
	}
	return rows
}

func StatsRows(cat *catalog.Catalog) []StatsRow {
	var rows []StatsRow
	for _, e := range cat.FilterByRole(catalog.DeltaIndex).Entries() {
		s := severity.Describe(e.Raster)
		rows = append(rows, StatsRow{
			Period: e.Provenance.Period,
			Valid:  s.Valid,
			Min:    s.Min,
			Max:    s.Max,
			Mean:   s.Mean,
			StdDev: s.StdDev,
			Median: s.Median,
		})
	}
	return rows
}

func writeCSV(path string, rows interface{}) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(rows, file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func WriteSummaryCSV(path string, s pipeline.Summary) error {
	rows := SummaryRows(s)
	return writeCSV(path, &rows)
}

func WriteHistogramCSV(path string, cat *catalog.Catalog) error {
	rows := HistogramRows(cat)
	return writeCSV(path, &rows)
}

func WriteStatsCSV(path string, cat *catalog.Catalog) error {
	rows := StatsRows(cat)
	return writeCSV(path, &rows)
}
