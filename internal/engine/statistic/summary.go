// Package statistic computes the descriptive statistics reported for each peer group.
package statistic

import (
	"Go2NetPeriod/internal/engine/grouping"
	"Go2NetPeriod/internal/model"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmptyGroup is returned by statistics that are undefined on zero records.
	ErrEmptyGroup = errors.New("statistic undefined on an empty group")
	// ErrDegeneratePeriod is returned when a period spans no positive amount of time.
	ErrDegeneratePeriod = errors.New("degenerate period")
)

// Summary holds the moments of a sample. A zero Count means the sample was empty
// and the other fields carry no information.
type Summary struct {
	Count    int
	Mean     float64
	Median   float64
	Variance float64 // population variance
}

// Defined reports whether the summary was computed over at least one value.
func (s Summary) Defined() bool {
	return s.Count > 0
}

// Summarize computes mean, median and population variance of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		Count:    len(values),
		Mean:     stat.Mean(values, nil),
		Median:   median(values),
		Variance: stat.PopVariance(values, nil),
	}
}

// median returns the middle value, or the mean of the two middle values for an even count.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Sizes summarizes the byte lengths of the records.
func Sizes(records []model.PacketRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrEmptyGroup
	}
	lengths := make([]float64, len(records))
	for i, r := range records {
		lengths[i] = float64(r.Length)
	}
	return Summarize(lengths), nil
}

// InterArrival returns the gaps between consecutive records in milliseconds together
// with their summary. Fewer than two records yield no deltas and an undefined summary.
func InterArrival(records []model.PacketRecord) (Summary, []float64) {
	if len(records) < 2 {
		return Summary{}, nil
	}
	deltas := make([]float64, len(records)-1)
	for i := 1; i < len(records); i++ {
		deltas[i-1] = (records[i].Timestamp - records[i-1].Timestamp) * 1000
	}
	return Summarize(deltas), deltas
}

// Throughput returns the bytes per second flowing in dir relative to local over the
// whole period. The elapsed time is taken between the first and last record of the period.
func Throughput(store model.RecordStore, period model.Period, dir model.Direction, local string) (float64, error) {
	if err := period.Validate(store.Len()); err != nil {
		return 0, fmt.Errorf("%w %q: %v", grouping.ErrInvalidPeriod, period.Label, err)
	}

	elapsed := store.At(period.End).Timestamp - store.At(period.Start).Timestamp
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w %q: elapsed time %.6fs is not positive", ErrDegeneratePeriod, period.Label, elapsed)
	}

	var total int
	for i := period.Start; i <= period.End; i++ {
		if rec := store.At(i); dir.Matches(rec, local) {
			total += rec.Length
		}
	}
	return float64(total) / elapsed, nil
}
