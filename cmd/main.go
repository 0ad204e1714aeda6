package main

import (
	"flag"
	"os"

	"github.com/miu200521358/mlib_go/pkg/mutils/mlog"

	"posebench/pkg/model"
	"posebench/pkg/usecase"
)

var logLevel string
var dataset string
var predDir string
var regressorPath string
var resultFile string
var reportFile string
var batchSize int
var numWorkers int
var logFreq int
var limit int
var shuffle bool

func init() {
	flag.StringVar(&logLevel, "logLevel", "INFO", "set log level")
	flag.StringVar(&dataset, "dataset", "h36m-p1", "evaluation dataset (h36m-p1, h36m-p2, 3dpw, 3dpw-vibe, mpi-inf-3dhp)")
	flag.StringVar(&predDir, "predDir", "", "directory with per-sequence *_pred.json exports")
	flag.StringVar(&regressorPath, "regressorPath", "", "path to the H36M joint regressor json")
	flag.StringVar(&resultFile, "resultFile", "", "if set, save per-sample results to this file")
	flag.StringVar(&reportFile, "reportFile", "", "if set, save the final report to this file")
	flag.IntVar(&batchSize, "batchSize", 32, "batch size for evaluation")
	flag.IntVar(&numWorkers, "workers", 4, "number of workers for loading exports")
	flag.IntVar(&logFreq, "logFreq", 50, "frequency of printing intermediate results")
	flag.IntVar(&limit, "limit", 0, "stop after this many batches (0 = all)")
	flag.BoolVar(&shuffle, "shuffle", false, "shuffle samples")
	flag.Parse()

	switch logLevel {
	case "INFO":
		mlog.SetLevel(mlog.INFO)
	default:
		mlog.SetLevel(mlog.DEBUG)
	}
}

func main() {
	if predDir == "" {
		mlog.E("predDir must be provided")
		os.Exit(1)
	}

	cfg, err := model.ResolveDataset(dataset)
	if err != nil {
		mlog.E("Failed to resolve dataset: %v", err)
		os.Exit(1)
	}
	if cfg.GtSource == model.GtMesh && regressorPath == "" {
		mlog.E("dataset %s needs -regressorPath", cfg.Name)
		os.Exit(1)
	}

	var regressor *model.JointRegressor
	if regressorPath != "" {
		regressor = model.NewJointRegressor(regressorPath)
	}

	mlog.I("Unpack predictions ================")
	sampleFiles, skipped, err := usecase.Unpack(predDir, numWorkers)
	if err != nil {
		mlog.E("Failed to unpack: %v", err)
		return
	}

	mlog.I("Evaluate %s ================", cfg.Name)
	result, err := usecase.Evaluate(sampleFiles, &usecase.EvalOptions{
		Dataset:     cfg,
		Regressor:   regressor,
		BatchSize:   batchSize,
		Shuffle:     shuffle,
		LogFreq:     logFreq,
		Limit:       limit,
		SaveResults: resultFile != "",
	})
	if err != nil {
		mlog.E("Failed to evaluate: %v", err)
		return
	}
	result.SkippedFiles = skipped

	mlog.I("Report ================")
	if _, err := usecase.Report(result, predDir, reportFile); err != nil {
		mlog.E("Failed to report: %v", err)
		return
	}

	if resultFile != "" {
		if err := usecase.WriteResults(result.Records, resultFile); err != nil {
			mlog.E("Failed to write results: %v", err)
			return
		}
	}

	mlog.I("Done!")
}
