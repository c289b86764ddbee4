package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/core/services"
)

var (
	evalGolden string
	evalK      int
	evalOutDir string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure retrieval recall@k over a golden set",
	Long: `Runs every question of a golden JSONL file through retrieval and reports
the share of expected sources found in the top-k chunks.

Each line of the golden file is an object:
  {"question": "How long do refunds take?", "expected_sources": ["refunds.md"]}

An expected source matches a retrieved chunk's document id, path or file
name. report.json and report.md are written to --out-dir.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalGolden, "golden", "", "golden set (JSONL)")
	evalCmd.Flags().IntVar(&evalK, "k", 5, "number of chunks to retrieve per question")
	evalCmd.Flags().StringVar(&evalOutDir, "out-dir", filepath.Join("reports", "latest"), "directory for report.json and report.md")
	_ = evalCmd.MarkFlagRequired("golden")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(evalGolden)
	if err != nil {
		return fmt.Errorf("open golden set: %w", err)
	}
	defer f.Close()

	cases, err := services.ParseGoldenSet(f)
	if err != nil {
		return err
	}

	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	report, err := evaluator.Evaluate(cmd.Context(), cases, evalK)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if err := os.MkdirAll(evalOutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(evalOutDir, "report.json"), data, 0o644); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}
	md := services.RenderEvalMarkdown(report)
	if err := os.WriteFile(filepath.Join(evalOutDir, "report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}

	return printJSON(cmd, struct {
		OutDir    string  `json:"out_dir"`
		RecallAtK float64 `json:"recall_at_k"`
	}{evalOutDir, report.RecallAtK})
}
