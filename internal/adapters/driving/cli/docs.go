package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
)

var docsJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	Long: `Lists the sync ledger: one entry per indexed document with its content
hash, chunk count and when it was last indexed.`,
	Args: cobra.NoArgs,
	RunE: runDocs,
}

func init() {
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	states, err := auditService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if docsJSON {
		return printJSON(cmd, views.FromDocStates(states))
	}

	if len(states) == 0 {
		cmd.Println("No documents indexed. Run 'sercha-kb sync --manifest <file>' first.")
		return nil
	}

	s := stylesFor(cmd.OutOrStdout())
	for _, st := range states {
		hash := st.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		cmd.Printf("%s  %s  chunks=%d  %s  %s\n",
			s.Label.Render(st.DocID),
			s.Muted.Render(hash),
			st.ChunkCount,
			st.IndexedAt.Local().Format(time.DateTime),
			st.Path)
	}
	return nil
}
