package pipeline

import (
	"fmt"
	"time"
)

type State string

const (
	Pending      State = "PENDING"
	Fetching     State = "FETCHING"
	Masking      State = "MASKING"
	Compositing  State = "COMPOSITING"
	Indexing     State = "INDEXING"
	Differencing State = "DIFFERENCING"
	Tagged       State = "TAGGED"
	Failed       State = "FAILED"
)

// PeriodResult is the outcome of one period. A failed period keeps the state it
// failed in so the summary can tell where it stopped.
type PeriodResult struct {
	Period     string
	State      State
	FailedIn   State
	Err        error
	Rasters    int
	PreScenes  int
	PostScenes int
	// ValidPixels counts the delta pixels holding data out of Pixels in the grid.
	ValidPixels int
	Pixels      int
	Duration    time.Duration
}

// ValidFraction is the share of the delta grid holding data, zero for a failed
// period.
func (r PeriodResult) ValidFraction() float64 {
	if r.Pixels == 0 {
		return 0
	}
	return float64(r.ValidPixels) / float64(r.Pixels)
}

func (r PeriodResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", r.FailedIn, r.Err)
}

type Summary struct {
	RunID   string
	Periods []PeriodResult
}

func (s Summary) Failed() []PeriodResult {
	var failed []PeriodResult
	for _, p := range s.Periods {
		if p.State == Failed {
			failed = append(failed, p)
		}
	}
	return failed
}

func (s Summary) Tagged() int {
	return len(s.Periods) - len(s.Failed())
}
