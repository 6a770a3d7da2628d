package detect

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/subwatch/internal/domain"
)

// PeriodicityResult is the classifier's verdict on a set of payment dates.
// Derived, never stored; the confidence is carried onto the subscription.
type PeriodicityResult struct {
	IsPeriodic bool
	Frequency  domain.Frequency
	Confidence float64
}

// confidenceFloor is the minimum confidence reported for a matched cadence.
const confidenceFloor = 0.6

// cadenceBand is an inclusive day-gap range for one payment cadence.
type cadenceBand struct {
	frequency domain.Frequency
	minDays   int
	maxDays   int
}

// Bands are checked in this fixed order. Real recurring charges are
// overwhelmingly monthly; checking monthly first keeps a monthly series with
// a few skipped cycles from landing in the much wider quarterly band.
var cadenceBands = []cadenceBand{
	{domain.FrequencyMonthly, 25, 35},
	{domain.FrequencyWeekly, 6, 8},
	{domain.FrequencyQuarterly, 85, 95},
}

// ClassifyPeriodicity decides whether the given dates form a regular cadence.
// minOccurrences is the minimum number of dates required (default 3);
// bandShare is the fraction of consecutive gaps that must fall inside a band
// for it to match (default 0.7). Pure function, no persisted state.
func ClassifyPeriodicity(dates []time.Time, minOccurrences int, bandShare float64) PeriodicityResult {
	if len(dates) < minOccurrences {
		return PeriodicityResult{}
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]int, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, wholeDays(sorted[i-1], sorted[i]))
	}
	if len(gaps) == 0 {
		return PeriodicityResult{}
	}

	for _, band := range cadenceBands {
		var matching []float64
		for _, g := range gaps {
			if g >= band.minDays && g <= band.maxDays {
				matching = append(matching, float64(g))
			}
		}
		if float64(len(matching)) < float64(len(gaps))*bandShare {
			continue
		}
		return PeriodicityResult{
			IsPeriodic: true,
			Frequency:  band.frequency,
			Confidence: gapConfidence(matching),
		}
	}

	return PeriodicityResult{}
}

// gapConfidence measures cadence regularity as 1 - stddev/mean over the
// matching gaps, clamped to [0,1] and floored at confidenceFloor. A single
// matching gap has zero dispersion and scores 1.
func gapConfidence(matching []float64) float64 {
	m := mean(matching)
	if m <= 0 {
		// Zero mean gap is "no signal", not a crash.
		return confidenceFloor
	}
	confidence := 1 - math.Min(stddev(matching, m)/m, 1)
	return math.Max(confidence, confidenceFloor)
}

func wholeDays(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation around the given mean.
func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
