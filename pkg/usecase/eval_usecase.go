package usecase

import (
	"math/rand"

	"github.com/miu200521358/mlib_go/pkg/mmath"
	"github.com/miu200521358/mlib_go/pkg/mutils/mlog"
	"github.com/pkg/errors"

	"posebench/pkg/metric"
	"posebench/pkg/model"
	"posebench/pkg/utils"
)

// EvalOptions fixes the evaluation plan before the first batch is read.
type EvalOptions struct {
	Dataset     *model.DatasetConfig
	Regressor   *model.JointRegressor
	BatchSize   int
	Shuffle     bool
	LogFreq     int
	Limit       int
	SaveResults bool
}

// EvalResult carries the run's aggregates plus its coverage gaps: samples
// excluded for numerical degeneracy or malformed data, and files that could
// not be loaded at all.
type EvalResult struct {
	Accum          *metric.Accumulator
	Records        []*model.ResultRecord
	Degenerate     []string
	Invalid        []string
	SkippedFiles   []string
	ProcessedCount int
}

// Evaluate runs the batch loop: prediction and ground-truth joints per
// sample, MPJPE and reconstruction error per sample, accumulation per
// sequence. Processing is strictly sequential; per-sample failures are
// excluded and counted, never averaged in.
func Evaluate(sampleFiles []*model.SampleFile, opts *EvalOptions) (*EvalResult, error) {
	if opts.Dataset == nil {
		return nil, errors.New("no dataset config")
	}
	if opts.Dataset.GtSource == model.GtMesh && opts.Regressor == nil {
		return nil, errors.Errorf("dataset %s derives ground truth from meshes and needs a joint regressor", opts.Dataset.Name)
	}

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	shuffle := opts.Shuffle
	if shuffle && opts.SaveResults {
		// Persisted results must stay in export order.
		mlog.I("Shuffle is disabled while saving results")
		shuffle = false
	}

	var samples []*model.Sample
	for _, sampleFile := range sampleFiles {
		samples = append(samples, sampleFile.Samples...)
	}
	if shuffle {
		rand.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
	}

	numBatches := (len(samples) + batchSize - 1) / batchSize
	if opts.Limit > 0 && numBatches > opts.Limit {
		mlog.I("Stopping after %d of %d batches", opts.Limit, numBatches)
		numBatches = opts.Limit
	}

	result := &EvalResult{Accum: metric.NewAccumulator()}
	bar := utils.NewProgressBar(numBatches)

	for step := 0; step < numBatches; step++ {
		bar.Increment()

		begin := step * batchSize
		end := min(begin+batchSize, len(samples))

		batchSums := map[metric.Kind]float64{}
		batchCount := 0
		lastSeq := ""

		for _, sample := range samples[begin:end] {
			pred, gt, err := evalJoints(sample, opts)
			if err != nil {
				mlog.E("[%s] %v", sample.ImgName, err)
				result.Invalid = append(result.Invalid, sample.ImgName)
				continue
			}

			values, err := metric.Errors(pred, gt)
			if err != nil {
				if errors.Is(err, metric.ErrDegenerate) {
					mlog.E("[%s] excluded: %v", sample.ImgName, err)
					result.Degenerate = append(result.Degenerate, sample.ImgName)
				} else {
					mlog.E("[%s] %v", sample.ImgName, err)
					result.Invalid = append(result.Invalid, sample.ImgName)
				}
				continue
			}

			seqName := sample.SeqName()
			if err := result.Accum.Record(seqName, values); err != nil {
				mlog.E("[%s] %v", sample.ImgName, err)
				result.Invalid = append(result.Invalid, sample.ImgName)
				continue
			}

			result.ProcessedCount++
			lastSeq = seqName
			batchCount++
			for kind, value := range values {
				batchSums[kind] += value
			}

			if opts.SaveResults {
				result.Records = append(result.Records, &model.ResultRecord{
					ImgName:    sample.ImgName,
					SeqName:    seqName,
					Gender:     sample.Gender,
					PredPose:   sample.PredPose,
					PredBetas:  sample.PredBetas,
					PredCamera: sample.PredCamera,
					PredJoints: model.FromVec3s(pred),
					GtJoints:   model.FromVec3s(gt),
					ErrorMpjpe: values[metric.Mpjpe] * 1000,
					ErrorRecon: values[metric.ReconError] * 1000,
					CropCenter: sample.CropCenter,
					CropScale:  sample.CropScale,
				})
			}
		}

		if batchCount > 0 {
			running := result.Accum.RunningSummary()
			mlog.V(">>> %s : MPJPE %.02f mm, error: %.02f mm | Total MPJPE %.02f mm, error %.02f mm",
				lastSeq,
				batchSums[metric.Mpjpe]/float64(batchCount)*1000,
				batchSums[metric.ReconError]/float64(batchCount)*1000,
				running[metric.Mpjpe]*1000,
				running[metric.ReconError]*1000)
		}

		if opts.LogFreq > 0 && (step+1)%opts.LogFreq == 0 {
			running := result.Accum.RunningSummary()
			mlog.I("[%d/%d] MPJPE: %.02f mm, Reconstruction Error: %.02f mm",
				step+1, numBatches, running[metric.Mpjpe]*1000, running[metric.ReconError]*1000)
		}
	}

	bar.Finish()

	if result.ProcessedCount == 0 {
		return nil, errors.New("no sample produced a valid error value")
	}

	return result, nil
}

// evalJoints produces the pelvis-centered evaluation joint sets for one
// sample. Predictions are always the 17 regressed H36M joints (either
// precomputed by the exporter or regressed here from mesh vertices);
// keypoint-mode ground truth arrives pre-centered in evaluation order.
func evalJoints(sample *model.Sample, opts *EvalOptions) (pred, gt []*mmath.MVec3, err error) {
	cfg := opts.Dataset

	switch {
	case len(sample.PredJoints) > 0:
		pred = model.ToVec3s(sample.PredJoints)
	case len(sample.PredVertices) > 0:
		if opts.Regressor == nil {
			return nil, nil, errors.New("sample has only mesh vertices and no joint regressor is configured")
		}
		pred, err = opts.Regressor.Regress(sample.PredVertices)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.New("sample has no predicted joints or vertices")
	}
	if len(pred) != h36mJointCount {
		return nil, nil, errors.Errorf("predicted joint set has %d joints, want %d", len(pred), h36mJointCount)
	}
	pred, err = metric.Reindex(metric.Center(pred, 0), cfg.JointMap)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.GtSource {
	case model.GtKeypoints:
		if len(sample.GtKeypoints) != cfg.NumJoints {
			return nil, nil, errors.Errorf("ground truth has %d keypoints, want %d", len(sample.GtKeypoints), cfg.NumJoints)
		}
		gt = model.ToVec3s(sample.GtKeypoints)
	case model.GtMesh:
		if len(sample.GtVertices) == 0 {
			return nil, nil, errors.New("sample has no ground-truth vertices")
		}
		gt, err = opts.Regressor.Regress(sample.GtVertices)
		if err != nil {
			return nil, nil, err
		}
		gt, err = metric.Reindex(metric.Center(gt, 0), cfg.JointMap)
		if err != nil {
			return nil, nil, err
		}
	}

	return pred, gt, nil
}

// The H36M regressor always produces 17 joints.
const h36mJointCount = 17
