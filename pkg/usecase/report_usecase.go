package usecase

import (
	"fmt"
	"os"
	"strings"

	"github.com/miu200521358/mlib_go/pkg/mutils/mlog"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"

	"posebench/pkg/metric"
	"posebench/pkg/model"
)

// Report renders the final aggregate block: one semicolon-delimited line per
// metric with the overall average followed by every sequence in
// first-appearance order. The block is printed, and written to reportPath
// (annotated with the data source) when one is given.
func Report(result *EvalResult, sourceDir, reportPath string) (string, error) {
	snapshot := result.Accum.Snapshot()

	var sb strings.Builder
	sb.WriteString("SeqNames; ")
	for _, seq := range snapshot.Sequences {
		sb.WriteString(seq.Name + ";")
	}
	for _, kind := range metric.Kinds {
		sb.WriteString(fmt.Sprintf("\n %s; Avg %.02f mm; ", kind, snapshot.Overall[kind]*1000))
		sb.WriteString(strings.Join(lo.Map(snapshot.Sequences, func(seq *metric.SequenceStats, _ int) string {
			return fmt.Sprintf("%.02f; ", seq.Mean[kind]*1000)
		}), ""))
	}
	output := sb.String()

	mlog.I("*** Final Results ***")
	mlog.I("%s", output)

	if mlog.IsDebug() {
		for _, seq := range snapshot.Sequences {
			mlog.D("%s: %d samples, median MPJPE %.02f mm, median Recon Error %.02f mm",
				seq.Name, seq.Count, seq.Median[metric.Mpjpe]*1000, seq.Median[metric.ReconError]*1000)
		}
	}

	mlog.I("Coverage: %d samples evaluated, %d degenerate, %d invalid, %d files skipped",
		snapshot.TotalSamples, len(result.Degenerate), len(result.Invalid), len(result.SkippedFiles))
	for _, path := range result.SkippedFiles {
		mlog.D("skipped file: %s", path)
	}

	if reportPath != "" {
		annotated := fmt.Sprintf("%s\n Input Dir:%s", output, sourceDir)
		if err := os.WriteFile(reportPath, []byte(annotated), 0644); err != nil {
			return output, errors.Wrapf(err, "failed to write report %s", reportPath)
		}
		mlog.I("Saved report to: %s", reportPath)
	}

	return output, nil
}

// WriteResults serializes the per-sample result records for companion
// tooling.
func WriteResults(records []*model.ResultRecord, path string) error {
	blob, err := msgpack.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return errors.Wrapf(err, "failed to write results %s", path)
	}
	mlog.I("Saved results to: %s", path)
	return nil
}
