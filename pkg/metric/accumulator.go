package metric

import (
	"math"

	"github.com/miu200521358/mlib_go/pkg/mutils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Accumulator files per-sample errors into buckets keyed by sequence name,
// for the duration of one evaluation run. Buckets are created lazily on the
// first sample of a sequence; overall means use concatenation semantics, so a
// sequence with more samples weighs proportionally more.
type Accumulator struct {
	order   []string
	buckets map[string]map[Kind][]float64
}

// SequenceStats is the final per-sequence breakdown.
type SequenceStats struct {
	Name   string
	Count  int
	Mean   map[Kind]float64
	Median map[Kind]float64
}

// Report is the aggregate view, recomputed on demand; sequences appear in
// first-recorded order.
type Report struct {
	Overall      map[Kind]float64
	TotalSamples int
	Sequences    []*SequenceStats
}

func NewAccumulator() *Accumulator {
	return &Accumulator{buckets: map[string]map[Kind][]float64{}}
}

// Record appends one value per tracked metric into the sequence's bucket.
// Every tracked metric must be present and finite; on any violation nothing
// is recorded.
func (a *Accumulator) Record(seqName string, values map[Kind]float64) error {
	if seqName == "" {
		return errors.New("empty sequence name")
	}
	for _, kind := range Kinds {
		value, ok := values[kind]
		if !ok {
			return errors.Errorf("missing %s value for sequence %s", kind, seqName)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return errors.Errorf("non-finite %s value %f for sequence %s", kind, value, seqName)
		}
	}

	bucket, ok := a.buckets[seqName]
	if !ok {
		bucket = map[Kind][]float64{}
		a.buckets[seqName] = bucket
		a.order = append(a.order, seqName)
	}
	for _, kind := range Kinds {
		bucket[kind] = append(bucket[kind], values[kind])
	}
	return nil
}

// TotalSamples is the number of samples recorded so far.
func (a *Accumulator) TotalSamples() int {
	return lo.SumBy(a.order, func(seqName string) int {
		return len(a.buckets[seqName][Mpjpe])
	})
}

// RunningSummary is the mean over all samples seen so far across all
// sequences, per metric. Zero-valued before the first sample.
func (a *Accumulator) RunningSummary() map[Kind]float64 {
	summary := map[Kind]float64{}
	for _, kind := range Kinds {
		all := a.concat(kind)
		if len(all) == 0 {
			summary[kind] = 0
			continue
		}
		summary[kind] = stat.Mean(all, nil)
	}
	return summary
}

// Snapshot builds the final report. Calling it repeatedly without further
// Record calls yields identical results.
func (a *Accumulator) Snapshot() *Report {
	report := &Report{
		Overall:      a.RunningSummary(),
		TotalSamples: a.TotalSamples(),
	}
	for _, seqName := range a.order {
		stats := &SequenceStats{
			Name:   seqName,
			Count:  len(a.buckets[seqName][Mpjpe]),
			Mean:   map[Kind]float64{},
			Median: map[Kind]float64{},
		}
		for _, kind := range Kinds {
			values := a.buckets[seqName][kind]
			stats.Mean[kind] = stat.Mean(values, nil)
			stats.Median[kind] = mutils.Median(values)
		}
		report.Sequences = append(report.Sequences, stats)
	}
	return report
}

func (a *Accumulator) concat(kind Kind) []float64 {
	return lo.Flatten(lo.Map(a.order, func(seqName string, _ int) []float64 {
		return a.buckets[seqName][kind]
	}))
}
