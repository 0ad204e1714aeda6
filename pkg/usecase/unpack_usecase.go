package usecase

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/miu200521358/mlib_go/pkg/mutils/mlog"
	"github.com/pkg/errors"

	"posebench/pkg/model"
	"posebench/pkg/utils"
)

// Unpack loads every per-sequence prediction export under dirPath. Files that
// are missing, unreadable or undecodable are skipped and returned as coverage
// gaps; they never abort the run.
func Unpack(dirPath string, workers int) ([]*model.SampleFile, []string, error) {
	mlog.I("Start: Unpack =============================")

	predPaths, err := utils.GetPredFilePaths(dirPath)
	if err != nil {
		mlog.E("Failed to get prediction file paths: %v", err)
		return nil, nil, errors.Wrapf(err, "failed to list %s", dirPath)
	}
	if len(predPaths) == 0 {
		return nil, nil, errors.Errorf("no *_pred.json exports under %s", dirPath)
	}
	if workers < 1 {
		workers = 1
	}

	loaded := make([]*model.SampleFile, len(predPaths))
	bar := utils.NewProgressBar(len(predPaths))

	var mu sync.Mutex
	var skipped []string
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, path := range predPaths {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, path string) {
			defer wg.Done()
			defer bar.Increment()
			defer func() { <-sem }()

			sampleFile, err := readSampleFile(path)
			if err != nil {
				mlog.E("[%s] %v", path, err)
				mu.Lock()
				skipped = append(skipped, path)
				mu.Unlock()
				return
			}
			loaded[i] = sampleFile
		}(i, path)
	}

	wg.Wait()
	bar.Finish()

	sampleFiles := make([]*model.SampleFile, 0, len(loaded))
	for _, sampleFile := range loaded {
		if sampleFile != nil {
			sampleFiles = append(sampleFiles, sampleFile)
		}
	}

	mlog.I("End: Unpack (%d files, %d skipped) =============================", len(sampleFiles), len(skipped))

	return sampleFiles, skipped, nil
}

func readSampleFile(path string) (*model.SampleFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open prediction file")
	}
	defer file.Close()

	sampleFile := new(model.SampleFile)
	sampleFile.Path = path
	if err := json.NewDecoder(file).Decode(sampleFile); err != nil {
		return nil, errors.Wrap(err, "failed to decode prediction file")
	}
	if len(sampleFile.Samples) == 0 {
		return nil, errors.New("prediction file has no samples")
	}
	return sampleFile, nil
}
