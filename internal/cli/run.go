package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patrace/patrace/internal/model"
	"github.com/patrace/patrace/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outDir       string
	mode         string
	criteriaPath string
	policyPath   string
	timeout      time.Duration
	noCache      bool
	noFooter     bool
	llmProvider  string
	llmModel     string
	llmBaseURL   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <case-file>",
	Short: "Process a single case and assemble its authorization packet",
	Long: `Run processes one case file to:
- Extract structured facts from the clinic note
- Verify every fact against an exact quote in the note
- Evaluate the payer criteria checklist
- Assemble the packet, checklist, and provenance artifacts

Example:
  patrace run case_001.json
  patrace run case_001.json --out ./packets/case_001
  patrace run case_001.json --mode llm --llm-provider ollama --llm-model llama3.1`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Output flags
	runCmd.Flags().StringVar(&outDir, "out", "./patrace-out", "output directory for packet artifacts")
	runCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown packet")

	// Extraction flags
	runCmd.Flags().StringVar(&mode, "mode", "baseline", "extraction mode (baseline, llm)")
	runCmd.Flags().StringVar(&criteriaPath, "criteria", "", "criteria YAML path (built-in spine MRI rules when empty)")
	runCmd.Flags().StringVar(&policyPath, "policy", "", "policy chunks path (built-in demo chunks when empty)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable extraction cache")

	// LLM flags
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
	runCmd.Flags().StringVar(&llmBaseURL, "llm-base-url", "", "override provider base URL")
}

func runRun(cmd *cobra.Command, args []string) error {
	casePath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Case: %s\n", casePath)
		fmt.Fprintf(os.Stderr, "Mode: %s\n", cfg.Extraction.Mode)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}

	bundle, err := p.RunCase(ctx, casePath)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := p.Render(bundle, outDir); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	renderer.RenderSummary(os.Stdout, bundle)
	if verbose {
		fmt.Fprintf(os.Stderr, "\n✓ Wrote artifacts to %s\n", outDir)
	}

	return nil
}

// buildConfig assembles runtime configuration from flags and environment
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	cfg.Extraction.Mode = mode
	cfg.Criteria.Path = criteriaPath
	cfg.Policy.Path = policyPath
	cfg.Cache.Enabled = !noCache
	cfg.Output.Verbose = verbose
	cfg.Output.IncludeFooter = !noFooter

	if mode != "baseline" && mode != "llm" {
		return nil, fmt.Errorf("unknown extraction mode %q (supported: baseline, llm)", mode)
	}

	if mode == "llm" {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.Model = llmModel
		cfg.LLM.BaseURL = llmBaseURL

		// Get API key from environment
		switch llmProvider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.LLM.APIKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		case "ollama":
			// Ollama doesn't need an API key
			if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
				cfg.LLM.BaseURL = baseURL
			}
		}
	}

	return cfg, nil
}
