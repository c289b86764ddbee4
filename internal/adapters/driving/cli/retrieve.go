package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
)

var (
	retrieveK    int
	retrieveRole string
	retrieveJSON bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Show the chunks a question retrieves",
	Long: `Embeds the question and lists the top-k chunks with their similarity
scores, without generating an answer or writing to the audit trail.
Useful for tuning the relevance threshold.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVar(&retrieveK, "k", 0, "number of chunks to retrieve (0 = configured default)")
	retrieveCmd.Flags().StringVar(&retrieveRole, "role", "", "only use documents visible to this role")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	question := strings.Join(args, " ")
	result, err := queryService.Retrieve(cmd.Context(), question, retrieveK, retrieveRole)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		return printJSON(cmd, views.FromRetrieval(question, retrieveK, retrieveRole, result))
	}

	out := cmd.OutOrStdout()
	s := stylesFor(out)
	printChunks(out, s, result.Items)
	fmt.Fprintln(out, s.Muted.Render(fmt.Sprintf("best_score=%.4f", result.Best())))
	return nil
}
