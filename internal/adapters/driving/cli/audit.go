package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

var (
	auditLimit int
	auditJSON  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long:  `View recorded questions and sync runs. Records are append-only.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent questions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show [query-id]",
	Short: "Show one recorded question",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAuditRuns,
}

func init() {
	for _, c := range []*cobra.Command{auditListCmd, auditRunsCmd} {
		c.Flags().IntVarP(&auditLimit, "limit", "n", 50, "maximum number of entries")
		c.Flags().BoolVar(&auditJSON, "json", false, "output as JSON")
	}
	auditShowCmd.Flags().BoolVar(&auditJSON, "json", false, "output as JSON")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditRunsCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	records, err := auditService.ListQueries(cmd.Context(), auditLimit)
	if err != nil {
		return fmt.Errorf("failed to list queries: %w", err)
	}

	if auditJSON {
		return printJSON(cmd, views.FromQueryRecords(records))
	}

	if len(records) == 0 {
		cmd.Println("No questions recorded.")
		return nil
	}

	s := stylesFor(cmd.OutOrStdout())
	for i := range records {
		r := &records[i]
		cmd.Printf("%s  %s  %-9s %.4f  %s\n",
			s.Muted.Render(r.ID),
			r.Timestamp.Local().Format(time.DateTime),
			r.Status,
			r.BestScore,
			snippet(r.Question, 80))
	}
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	record, err := auditService.GetQuery(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("query %s not found", args[0])
		}
		return fmt.Errorf("failed to get query: %w", err)
	}

	if auditJSON {
		return printJSON(cmd, views.FromQueryRecord(*record))
	}

	s := stylesFor(cmd.OutOrStdout())
	cmd.Printf("%s %s\n", s.Label.Render("ID:"), record.ID)
	cmd.Printf("%s %s\n", s.Label.Render("Time:"), record.Timestamp.Local().Format(time.DateTime))
	cmd.Printf("%s %s\n", s.Label.Render("Question:"), record.Question)
	cmd.Printf("%s %s\n", s.Label.Render("Status:"), record.Status)
	if record.Reason != "" {
		cmd.Printf("%s %s\n", s.Label.Render("Reason:"), record.Reason)
	}
	cmd.Printf("%s %.4f (k=%d)\n", s.Label.Render("Best score:"), record.BestScore, record.K)
	if record.Role != "" {
		cmd.Printf("%s %s\n", s.Label.Render("Role:"), record.Role)
	}
	if record.ErrorDetail != "" {
		cmd.Printf("%s %s\n", s.Label.Render("Error:"), record.ErrorDetail)
	}
	cmd.Println()
	cmd.Println(record.Answer)
	if len(record.Sources) > 0 {
		cmd.Println()
		cmd.Println(s.Title.Render("Sources:"))
		for _, src := range record.Sources {
			cmd.Printf("  [%s] %s (%s) %.4f\n", src.Label, src.DocID, src.Locator, src.Score)
		}
	}
	return nil
}

func runAuditRuns(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context(), false); err != nil {
		return err
	}

	runs, err := auditService.ListSyncRuns(cmd.Context(), auditLimit)
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if auditJSON {
		return printJSON(cmd, views.FromSyncRuns(runs))
	}

	if len(runs) == 0 {
		cmd.Println("No sync runs recorded.")
		return nil
	}

	s := stylesFor(cmd.OutOrStdout())
	for i := range runs {
		r := &runs[i]
		status := s.Success.Render("ok")
		if !r.OK() {
			status = s.Error.Render("failed")
		}
		cmd.Printf("%s  %s  %s  indexed=%d changed=%d failed=%d/%d  %s\n",
			s.Muted.Render(r.ID),
			r.Timestamp.Local().Format(time.DateTime),
			status,
			r.DocsIndexed, r.DocsChanged, r.DocsFailed, r.DocsTotal,
			r.ManifestPath)
		for _, e := range r.Errors {
			cmd.Printf("    %s: %s\n", e.DocID, e.Message)
		}
	}
	return nil
}
