package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

var (
	askK           int
	askTemperature float64
	askRole        string
	askJSON        bool
	askDebug       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question of the knowledge base",
	Long: `Retrieves the most relevant chunks, refuses when none is relevant
enough, and otherwise generates an answer that cites its sources as [S1],
[S2], ... followed by a Sources section.

Every question is recorded in the audit trail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askK, "k", 0, "number of chunks to retrieve (0 = configured default)")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", -1, "generation temperature (negative = configured default)")
	askCmd.Flags().StringVar(&askRole, "role", "", "only use documents visible to this role")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askDebug, "debug", false, "also show the retrieved chunks")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context(), true); err != nil {
		return err
	}

	req := domain.QueryRequest{
		Question: strings.Join(args, " "),
		K:        askK,
		Role:     askRole,
	}
	if askTemperature >= 0 {
		t := askTemperature
		req.Temperature = &t
	}

	answer, err := queryService.Ask(cmd.Context(), req)
	if answer == nil {
		return err
	}

	if askJSON {
		if jsonErr := printJSON(cmd, views.FromAnswer(answer, askDebug)); jsonErr != nil {
			return jsonErr
		}
	} else {
		printAnswer(cmd, answer)
	}

	return err
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	out := cmd.OutOrStdout()
	s := stylesFor(out)

	switch answer.Status {
	case domain.QueryStatusAnswered:
		fmt.Fprintln(out, s.Answer.Render(answer.Text))
	case domain.QueryStatusNotInKB:
		fmt.Fprintln(out, s.Warning.Render(answer.Text))
	default:
		fmt.Fprintln(out, s.Error.Render(answer.Text))
	}

	meta := fmt.Sprintf("status=%s best_score=%.4f", answer.Status, answer.BestScore)
	if answer.RecordID != "" {
		meta += " id=" + answer.RecordID
	}
	fmt.Fprintln(out, s.Muted.Render(meta))

	if askDebug && answer.Retrieval != nil {
		fmt.Fprintln(out)
		printChunks(out, s, answer.Retrieval.Items)
	}
}

// printChunks lists scored chunks in retrieval order.
func printChunks(out io.Writer, s *Styles, items []domain.ScoredChunk) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No chunks retrieved.")
		return
	}

	fmt.Fprintln(out, s.Title.Render("Retrieved chunks:"))
	for i, item := range items {
		fmt.Fprintf(out, "  %s %.4f  %s (%s)\n",
			s.Label.Render(fmt.Sprintf("[%d]", i+1)),
			item.Score,
			item.DisplayName(),
			item.Chunk.Locator())
		fmt.Fprintf(out, "      %s\n", s.Muted.Render(snippet(item.Chunk.Text, 160)))
	}
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
