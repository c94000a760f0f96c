// Package period defines analysis periods: a named pair of pre-fire and post-fire
// acquisition windows.
package period

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidPeriod = errors.New("invalid analysis period")

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

func (d DateRange) String() string {
	return d.Start.Format(DateLayout) + "/" + d.End.Format(DateLayout)
}

func ParseRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q: %v", ErrInvalidPeriod, start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q: %v", ErrInvalidPeriod, end, err)
	}
	return DateRange{Start: s, End: e}, nil
}

// Period is immutable once built; use New.
type Period struct {
	name string
	pre  DateRange
	post DateRange
}

// New validates pre.Start <= pre.End <= post.Start <= post.End.
func New(name string, pre, post DateRange) (Period, error) {
	if name == "" {
		return Period{}, fmt.Errorf("%w: empty name", ErrInvalidPeriod)
	}
	if pre.End.Before(pre.Start) || post.Start.Before(pre.End) || post.End.Before(post.Start) {
		return Period{}, fmt.Errorf("%w: %s windows are not chronological (pre %s, post %s)", ErrInvalidPeriod, name, pre, post)
	}
	return Period{name: name, pre: pre, post: post}, nil
}

// Parse builds a period from YYYY-MM-DD strings.
func Parse(name, preStart, preEnd, postStart, postEnd string) (Period, error) {
	pre, err := ParseRange(preStart, preEnd)
	if err != nil {
		return Period{}, fmt.Errorf("%s pre-fire window: %w", name, err)
	}
	post, err := ParseRange(postStart, postEnd)
	if err != nil {
		return Period{}, fmt.Errorf("%s post-fire window: %w", name, err)
	}
	return New(name, pre, post)
}

func (p Period) Name() string {
	return p.name
}

func (p Period) Pre() DateRange {
	return p.pre
}

func (p Period) Post() DateRange {
	return p.post
}

// FireWindow is the gap between the pre-fire and post-fire windows, when the fire is
// assumed to have happened.
func (p Period) FireWindow() DateRange {
	return DateRange{Start: p.pre.End, End: p.post.Start}
}

func (p Period) String() string {
	return fmt.Sprintf("%s(pre %s, post %s)", p.name, p.pre, p.post)
}
