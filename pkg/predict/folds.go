// pkg/predict/folds.go
package predict

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/model"
)

// Fold holds the row positions of one cross-validation split
type Fold struct {
	Number int // 1-based
	Train  []int
	Test   []int
}

// FoldError is returned when fitting or predicting one fold fails
type FoldError struct {
	Fold int
	Err  error
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("fold %d: %v", e.Fold, e.Err)
}

func (e *FoldError) Unwrap() error {
	return e.Err
}

// StratifiedKFold splits rows into nSplits folds without shuffling so every
// fold holds roughly the same share of each class. Classes are taken in
// order of first appearance and the rows of each class are dealt to folds
// in row order.
func StratifiedKFold(y []string, nSplits int) ([]Fold, error) {
	n := len(y)
	if nSplits < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", nSplits)
	}
	if nSplits > n {
		return nil, fmt.Errorf("cannot have number of folds %d greater than the number of samples %d", nSplits, n)
	}

	classIndex := make(map[string]int)
	encoded := make([]int, n)
	var counts []int
	for i, label := range y {
		k, ok := classIndex[label]
		if !ok {
			k = len(counts)
			classIndex[label] = k
			counts = append(counts, 0)
		}
		encoded[i] = k
		counts[k]++
	}

	tooFew := true
	for _, c := range counts {
		if c >= nSplits {
			tooFew = false
			break
		}
	}
	if tooFew {
		return nil, fmt.Errorf("number of folds %d is greater than the number of members in each class", nSplits)
	}

	// allocation[f][k]: rows of class k tested in fold f, found by dealing
	// the class-sorted labels round-robin across folds
	nClasses := len(counts)
	allocation := make([][]int, nSplits)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
	}
	pos := 0
	for k, c := range counts {
		for j := 0; j < c; j++ {
			allocation[(pos+j)%nSplits][k]++
		}
		pos += c
	}

	// Rows of class k take fold 0 allocation[0][k] times, then fold 1, ...
	testFold := make([]int, n)
	next := make([]int, nClasses)
	used := make([]int, nClasses)
	for i, k := range encoded {
		for used[k] >= allocation[next[k]][k] {
			next[k]++
			used[k] = 0
		}
		testFold[i] = next[k]
		used[k]++
	}

	folds := make([]Fold, nSplits)
	for f := range folds {
		folds[f].Number = f + 1
	}
	for i, f := range testFold {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}

// workerCount resolves -1 to the number of CPUs
func workerCount(configured, folds int) int {
	n := configured
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > folds {
		n = folds
	}
	return n
}

// crossValPredict fits a clone of the pipeline per fold on a bounded worker
// pool and returns each row's prediction from the fold that held it out
func (p *Predictor) crossValPredict(ctx context.Context, pipeline *classifier.Pipeline, X *model.Dataset, y []string, folds []Fold) ([]string, error) {
	predictions := make([]string, X.Len())
	workers := workerCount(p.cfg.CVWorkers, len(folds))

	p.logger.Info("Starting cross-validated predictions",
		zap.Int("folds", len(folds)),
		zap.Int("workers", workers),
		zap.Int("rows", X.Len()))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, fold := range folds {
		fold := fold
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.runFold(pipeline, X, y, fold, len(folds), predictions)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return predictions, nil
}

// runFold fits on the training rows and writes predictions for the test
// rows. Test rows of different folds are disjoint so the writes never overlap.
func (p *Predictor) runFold(pipeline *classifier.Pipeline, X *model.Dataset, y []string, fold Fold, total int, predictions []string) error {
	start := time.Now()
	logger := p.logger.With(zap.Int("fold", fold.Number), zap.Int("of", total))
	logger.Debug("Fold started",
		zap.Int("train_rows", len(fold.Train)),
		zap.Int("test_rows", len(fold.Test)))

	trainY := make([]string, len(fold.Train))
	for i, idx := range fold.Train {
		trainY[i] = y[idx]
	}

	estimator := pipeline.Clone()
	if err := estimator.Fit(X.Take(fold.Train), trainY); err != nil {
		return &FoldError{Fold: fold.Number, Err: err}
	}

	pred, err := estimator.Predict(X.Take(fold.Test))
	if err != nil {
		return &FoldError{Fold: fold.Number, Err: err}
	}
	for i, idx := range fold.Test {
		predictions[idx] = pred[i]
	}

	elapsed := time.Since(start)
	p.metrics.RecordFold(fold.Number, elapsed)
	logger.Info("Fold completed", zap.Duration("duration", elapsed))
	return nil
}
