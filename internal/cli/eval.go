package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrace/patrace/internal/eval"
	"github.com/patrace/patrace/internal/model"
	"github.com/patrace/patrace/internal/pipeline"
	"github.com/patrace/patrace/internal/worker"
	"github.com/spf13/cobra"
)

var (
	goldPath     string
	evalOutDir   string
	concurrency  int
	evalTimeout  time.Duration
	writeBundles bool
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval <cases-dir>",
	Short: "Run a case set against gold labels and score the pipeline",
	Long: `Eval processes every case file in a directory concurrently and scores
the results against gold labels:
- Decision accuracy (overall status vs gold)
- Per-field accuracy (durations, red flags)
- Provenance validity (every cited quote re-verified against its note)
- Abstention precision (UNKNOWN only where the documentation is silent)

Example:
  patrace eval ./cases --gold gold.json
  patrace eval ./cases --gold gold.yaml --mode llm --concurrency 8
  patrace eval ./cases --gold gold.json --out ./eval-results --bundles`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&goldPath, "gold", "", "gold labels file (JSON or YAML, required)")
	evalCmd.Flags().StringVar(&evalOutDir, "out", "./patrace-eval", "output directory for metrics and report")
	evalCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: config eval_workers)")
	evalCmd.Flags().DurationVar(&evalTimeout, "timeout", 10*time.Minute, "total timeout for the evaluation run")
	evalCmd.Flags().BoolVar(&writeBundles, "bundles", false, "also write per-case packet artifacts under the output directory")

	// Extraction flags shared with run
	evalCmd.Flags().StringVar(&mode, "mode", "baseline", "extraction mode (baseline, llm)")
	evalCmd.Flags().StringVar(&criteriaPath, "criteria", "", "criteria YAML path (built-in spine MRI rules when empty)")
	evalCmd.Flags().StringVar(&policyPath, "policy", "", "policy chunks path (built-in demo chunks when empty)")
	evalCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable extraction cache")

	// LLM flags
	evalCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	evalCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
	evalCmd.Flags().StringVar(&llmBaseURL, "llm-base-url", "", "override provider base URL")

	_ = evalCmd.MarkFlagRequired("gold")
}

func runEval(cmd *cobra.Command, args []string) error {
	casesDir := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	workers := cfg.Concurrency.EvalWorkers
	if concurrency > 0 {
		workers = concurrency
	}

	gold, err := eval.LoadGold(goldPath)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}

	paths, err := worker.ListCaseFiles(casesDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Cases:   %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "Gold:    %d labeled\n", len(gold))
	fmt.Fprintf(os.Stderr, "Workers: %d\n", workers)
	fmt.Fprintf(os.Stderr, "Mode:    %s\n\n", cfg.Extraction.Mode)

	processor := worker.NewBatchProcessor(p, workers)
	results := processor.ProcessPaths(ctx, paths)

	var bundles []*model.Bundle
	runErrors := 0
	for _, result := range results {
		if result.Error != nil {
			runErrors++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}
		bundles = append(bundles, result.Bundle)

		if writeBundles {
			renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
			caseDir := filepath.Join(evalOutDir, "cases", result.CaseID)
			if err := renderer.WriteBundle(result.Bundle, caseDir); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write artifacts: %v\n", result.CaseID, err)
			}
		}
	}

	report := eval.Evaluate(bundles, runErrors, gold)
	if err := eval.WriteReport(report, evalOutDir); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Decision accuracy:    %.2f (%d/%d)\n", report.DecisionAccuracy.Value(), report.DecisionAccuracy.Hits, report.DecisionAccuracy.Total)
	fmt.Fprintf(os.Stderr, "Provenance validity:  %.2f (%d/%d)\n", report.ProvenanceValidity.Value(), report.ProvenanceValidity.Hits, report.ProvenanceValidity.Total)
	fmt.Fprintf(os.Stderr, "Abstention precision: %.2f (%d/%d)\n", report.AbstentionPrecision.Value(), report.AbstentionPrecision.Hits, report.AbstentionPrecision.Total)
	fmt.Fprintf(os.Stderr, "\n✓ Wrote metrics to %s\n", evalOutDir)

	if runErrors > 0 {
		return fmt.Errorf("%d case(s) failed to run", runErrors)
	}
	return nil
}
