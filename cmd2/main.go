package main

import (
	"flag"
	"os"
	"strings"

	"github.com/miu200521358/mlib_go/pkg/mutils/mlog"
	"github.com/vmihailenco/msgpack/v5"

	"posebench/pkg/metric"
	"posebench/pkg/model"
	"posebench/pkg/usecase"
)

// Re-renders the aggregate report from a saved per-sample result file,
// without re-running the evaluation.

var logLevel string
var resultFile string
var reportFile string

func init() {
	flag.StringVar(&logLevel, "logLevel", "INFO", "set log level")
	flag.StringVar(&resultFile, "resultFile", "", "per-sample result file written by the evaluator")
	flag.StringVar(&reportFile, "reportFile", "", "if set, save the final report to this file")
	flag.Parse()

	switch logLevel {
	case "INFO":
		mlog.SetLevel(mlog.INFO)
	default:
		mlog.SetLevel(mlog.DEBUG)
	}
}

func main() {
	if resultFile == "" {
		mlog.E("resultFile must be provided")
		os.Exit(1)
	}

	blob, err := os.ReadFile(resultFile)
	if err != nil {
		mlog.E("Failed to read results: %v", err)
		return
	}

	var records []*model.ResultRecord
	if err := msgpack.Unmarshal(blob, &records); err != nil {
		mlog.E("Failed to decode results: %v", err)
		return
	}
	mlog.I("Loaded %d result records from %s", len(records), resultFile)

	result := &usecase.EvalResult{Accum: metric.NewAccumulator()}
	for _, record := range records {
		// Stored errors are in millimeters; the aggregator works in meters.
		err := result.Accum.Record(record.SeqName, map[metric.Kind]float64{
			metric.Mpjpe:      record.ErrorMpjpe / 1000,
			metric.ReconError: record.ErrorRecon / 1000,
		})
		if err != nil {
			mlog.E("[%s] %v", record.ImgName, err)
			result.Invalid = append(result.Invalid, record.ImgName)
			continue
		}
		result.ProcessedCount++
	}

	if reportFile == "" && strings.HasSuffix(resultFile, ".bin") {
		reportFile = strings.TrimSuffix(resultFile, ".bin") + "_report.txt"
	}

	if _, err := usecase.Report(result, resultFile, reportFile); err != nil {
		mlog.E("Failed to report: %v", err)
		return
	}

	mlog.I("Done!")
}
