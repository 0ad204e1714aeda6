package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posebench/pkg/metric"
	"posebench/pkg/model"
)

// h36mPose17 is a plausible 17-joint H36M regressor output, in meters, with
// the pelvis at index 0.
func h36mPose17() [][3]float64 {
	return [][3]float64{
		{0.00, 0.00, 0.00},   // pelvis
		{0.09, -0.02, 0.01},  // right hip
		{0.11, -0.46, 0.04},  // right knee
		{0.12, -0.89, 0.08},  // right ankle
		{-0.09, -0.02, 0.01}, // left hip
		{-0.11, -0.45, 0.03}, // left knee
		{-0.12, -0.88, 0.07}, // left ankle
		{0.01, 0.24, -0.04},  // spine
		{0.00, 0.48, -0.03},  // neck
		{0.01, 0.56, 0.00},   // jaw
		{0.01, 0.64, 0.02},   // head
		{-0.17, 0.42, -0.02}, // left shoulder
		{-0.26, 0.17, 0.00},  // left elbow
		{-0.29, -0.07, 0.06}, // left wrist
		{0.17, 0.41, -0.02},  // right shoulder
		{0.25, 0.16, -0.01},  // right elbow
		{0.28, -0.08, 0.05},  // right wrist
	}
}

// keypointSample builds a sample whose ground truth is the prediction's own
// evaluation set shifted by gtOffset along X, so MPJPE equals gtOffset.
func keypointSample(t *testing.T, cfg *model.DatasetConfig, imgName string, gtOffset float64) *model.Sample {
	t.Helper()

	pred := h36mPose17()
	evalSet, err := metric.Reindex(metric.Center(model.ToVec3s(pred), 0), cfg.JointMap)
	require.NoError(t, err)

	gt := model.FromVec3s(evalSet)
	for i := range gt {
		gt[i][0] += gtOffset
	}

	return &model.Sample{
		ImgName:     imgName,
		PredJoints:  pred,
		GtKeypoints: gt,
		CropScale:   1.2,
	}
}

func evalOptions(cfg *model.DatasetConfig) *EvalOptions {
	return &EvalOptions{Dataset: cfg, BatchSize: 2, LogFreq: 1}
}

func TestEvaluateExactPredictions(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{
			keypointSample(t, cfg, "images/walking/img_000.jpg", 0),
			keypointSample(t, cfg, "images/walking/img_001.jpg", 0),
		}},
		{Path: "sitting_pred.json", Samples: []*model.Sample{
			keypointSample(t, cfg, "images/sitting/img_000.jpg", 0),
		}},
	}

	result, err := Evaluate(files, evalOptions(cfg))
	require.NoError(t, err)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Empty(t, result.Invalid)
	assert.Empty(t, result.Degenerate)

	report := result.Accum.Snapshot()
	assert.InDelta(t, 0, report.Overall[metric.Mpjpe], 1e-9)
	assert.InDelta(t, 0, report.Overall[metric.ReconError], 1e-9)
	require.Len(t, report.Sequences, 2)
	assert.Equal(t, "walking", report.Sequences[0].Name)
	assert.Equal(t, "sitting", report.Sequences[1].Name)
}

func TestEvaluateKnownOffset(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{
			keypointSample(t, cfg, "images/walking/img_000.jpg", 0.05),
		}},
	}

	result, err := Evaluate(files, evalOptions(cfg))
	require.NoError(t, err)

	report := result.Accum.Snapshot()
	assert.InDelta(t, 0.05, report.Overall[metric.Mpjpe], 1e-9)
	// A pure translation of the ground truth is removed by the alignment.
	assert.InDelta(t, 0, report.Overall[metric.ReconError], 1e-9)
}

func TestEvaluateSkipsInvalidSamples(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	broken := keypointSample(t, cfg, "images/walking/img_001.jpg", 0)
	broken.GtKeypoints = broken.GtKeypoints[:5]
	noPred := &model.Sample{ImgName: "images/walking/img_002.jpg"}

	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{
			keypointSample(t, cfg, "images/walking/img_000.jpg", 0),
			broken,
			noPred,
		}},
	}

	result, err := Evaluate(files, evalOptions(cfg))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, []string{"images/walking/img_001.jpg", "images/walking/img_002.jpg"}, result.Invalid)
	assert.Equal(t, 1, result.Accum.TotalSamples())
}

func TestEvaluateExcludesDegenerateSamples(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	colinear := keypointSample(t, cfg, "images/walking/img_001.jpg", 0)
	for i := range colinear.PredJoints {
		colinear.PredJoints[i] = [3]float64{float64(i) * 0.1, 0, 0}
	}

	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{
			keypointSample(t, cfg, "images/walking/img_000.jpg", 0),
			colinear,
		}},
	}

	result, err := Evaluate(files, evalOptions(cfg))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, []string{"images/walking/img_001.jpg"}, result.Degenerate)
	// The degenerate sample contributes to no bucket.
	assert.Equal(t, 1, result.Accum.TotalSamples())
}

func TestEvaluateMeshModeNeedsRegressor(t *testing.T) {
	cfg, err := model.ResolveDataset("3dpw")
	require.NoError(t, err)

	_, err = Evaluate(nil, evalOptions(cfg))
	assert.Error(t, err)
}

func TestEvaluateMeshMode(t *testing.T) {
	cfg, err := model.ResolveDataset("3dpw")
	require.NoError(t, err)

	// An identity regressor makes the 17 "vertices" the joints themselves.
	weights := make([][]float64, 17)
	for j := range weights {
		weights[j] = make([]float64, 17)
		weights[j][j] = 1
	}
	blob, err := json.Marshal(map[string]any{"joints": 17, "vertices": 17, "weights": weights})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "regressor.json")
	require.NoError(t, os.WriteFile(path, blob, 0644))

	pose := h36mPose17()
	files := []*model.SampleFile{
		{Path: "downtown_pred.json", Samples: []*model.Sample{{
			ImgName:      "imageFiles/downtown_walking_00/image_00001.jpg",
			PredVertices: pose,
			GtVertices:   pose,
		}}},
	}

	opts := evalOptions(cfg)
	opts.Regressor = model.NewJointRegressor(path)
	result, err := Evaluate(files, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	report := result.Accum.Snapshot()
	require.Len(t, report.Sequences, 1)
	assert.Equal(t, "downtown_walking_00", report.Sequences[0].Name)
	assert.InDelta(t, 0, report.Overall[metric.Mpjpe], 1e-9)
}

func TestEvaluateLimitStopsEarly(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	var samples []*model.Sample
	for i := 0; i < 5; i++ {
		samples = append(samples, keypointSample(t, cfg, fmt.Sprintf("images/walking/img_%03d.jpg", i), 0))
	}
	files := []*model.SampleFile{{Path: "walking_pred.json", Samples: samples}}

	opts := evalOptions(cfg)
	opts.BatchSize = 1
	opts.Limit = 2
	result, err := Evaluate(files, opts)
	require.NoError(t, err)

	// The partial report stays well-defined.
	assert.Equal(t, 2, result.ProcessedCount)
	assert.InDelta(t, 0, result.Accum.RunningSummary()[metric.Mpjpe], 1e-9)
}

func TestEvaluateSaveResults(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	sample := keypointSample(t, cfg, "images/walking/img_000.jpg", 0.05)
	sample.Gender = 1
	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{sample}},
	}

	opts := evalOptions(cfg)
	opts.SaveResults = true
	opts.Shuffle = true // forced off while saving
	result, err := Evaluate(files, opts)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	record := result.Records[0]
	assert.Equal(t, "images/walking/img_000.jpg", record.ImgName)
	assert.Equal(t, "walking", record.SeqName)
	assert.Equal(t, 1, record.Gender)
	assert.InDelta(t, 50, record.ErrorMpjpe, 1e-6) // millimeters
	assert.Len(t, record.PredJoints, cfg.NumJoints)
	assert.Len(t, record.GtJoints, cfg.NumJoints)
	assert.Equal(t, 1.2, record.CropScale)
}

func TestEvaluateNoValidSamples(t *testing.T) {
	cfg, err := model.ResolveDataset("h36m-p1")
	require.NoError(t, err)

	files := []*model.SampleFile{
		{Path: "walking_pred.json", Samples: []*model.Sample{
			{ImgName: "images/walking/img_000.jpg"},
		}},
	}

	_, err = Evaluate(files, evalOptions(cfg))
	assert.Error(t, err)
}
