package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/patrace/patrace/internal/model"
)

// Runner defines the interface for processing a single case file. Cases
// share no mutable state, so a batch parallelizes with no cross-case
// synchronization.
type Runner interface {
	RunCase(ctx context.Context, casePath string) (*model.Bundle, error)
}

// CaseJob processes one case file
type CaseJob struct {
	Path   string
	Runner Runner
}

// Execute runs the case through the pipeline
func (j *CaseJob) Execute(ctx context.Context) *CaseResult {
	bundle, err := j.Runner.RunCase(ctx, j.Path)
	if err != nil {
		return &CaseResult{Path: j.Path, Error: err}
	}
	return &CaseResult{Path: j.Path, CaseID: bundle.Case.CaseID, Bundle: bundle}
}

// CaseResult is the outcome of one case job
type CaseResult struct {
	Path   string
	CaseID string
	Bundle *model.Bundle
	Error  error
}

// BatchProcessor processes multiple case files concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessPaths runs all case files through the pipeline concurrently.
// Results come back sorted by path so batch output is stable.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*CaseResult {
	if len(paths) == 0 {
		return []*CaseResult{}
	}

	pool := NewPool[*CaseResult](b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&CaseJob{Path: path, Runner: b.runner})
	}

	results := pool.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}

// ProcessDir discovers case files in a directory and processes them
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*CaseResult, error) {
	paths, err := ListCaseFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return b.ProcessPaths(ctx, paths), nil
}

// ListCaseFiles finds case_*.json and case_*.yaml files in dir, sorted
func ListCaseFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"case_*.json", "case_*.yaml", "case_*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no case files found in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
