package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Evaluator implements the interface.
var _ driving.Evaluator = (*Evaluator)(nil)

// Evaluator computes recall@k of the retrieval path over a golden set.
type Evaluator struct {
	query driving.QueryService
}

// NewEvaluator creates an evaluator that retrieves through query.
func NewEvaluator(query driving.QueryService) *Evaluator {
	return &Evaluator{query: query}
}

// Evaluate retrieves k chunks per case. Expected sources are deduplicated;
// one is a hit when it equals the doc id, path or path base name of any
// retrieved chunk.
// recall@k is hits over the total number of expected sources.
// A case whose retrieval fails counts all its expected sources as misses.
func (e *Evaluator) Evaluate(ctx context.Context, cases []domain.GoldenCase, k int) (*domain.EvalReport, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	report := &domain.EvalReport{K: k, PerQuestion: make([]domain.EvalCaseResult, 0, len(cases))}
	for i, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("Evaluating %d/%d: %q", i+1, len(cases), gc.Question)

		expected := uniqueSorted(gc.ExpectedSources)
		cr := domain.EvalCaseResult{
			Question:         gc.Question,
			ExpectedSources:  expected,
			RetrievedSources: []string{},
			Hits:             []string{},
			Misses:           []string{},
		}

		result, err := e.query.Retrieve(ctx, gc.Question, k, gc.Role)
		if err != nil {
			cr.Error = err.Error()
			cr.Misses = append(cr.Misses, expected...)
		} else {
			cr.BestScore = result.Best()
			keys := make(map[string]bool)
			for _, item := range result.Items {
				keys[item.Chunk.DocID] = true
				keys[item.Path] = true
				keys[path.Base(item.Path)] = true
			}
			cr.RetrievedSources = append(cr.RetrievedSources, result.DocIDs()...)
			for _, exp := range expected {
				if keys[exp] {
					cr.Hits = append(cr.Hits, exp)
				} else {
					cr.Misses = append(cr.Misses, exp)
				}
			}
		}

		report.ExpectedTotal += len(expected)
		report.HitTotal += len(cr.Hits)
		report.PerQuestion = append(report.PerQuestion, cr)
	}

	if report.ExpectedTotal > 0 {
		report.RecallAtK = float64(report.HitTotal) / float64(report.ExpectedTotal)
	}
	logger.Info("recall@%d = %.4f (%d/%d)", k, report.RecallAtK, report.HitTotal, report.ExpectedTotal)
	return report, nil
}

// ParseGoldenSet reads JSON Lines golden cases. Blank lines are skipped.
func ParseGoldenSet(r io.Reader) ([]domain.GoldenCase, error) {
	var cases []domain.GoldenCase
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var gc domain.GoldenCase
		if err := json.Unmarshal([]byte(text), &gc); err != nil {
			return nil, fmt.Errorf("%w: golden line %d: %v", domain.ErrInvalidInput, line, err)
		}
		if strings.TrimSpace(gc.Question) == "" {
			return nil, fmt.Errorf("%w: golden line %d: missing question", domain.ErrInvalidInput, line)
		}
		cases = append(cases, gc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read golden set: %w", err)
	}
	return cases, nil
}

// RenderEvalMarkdown renders a human-readable evaluation report.
func RenderEvalMarkdown(report *domain.EvalReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Retrieval evaluation\n\n")
	fmt.Fprintf(&b, "- k: %d\n", report.K)
	fmt.Fprintf(&b, "- expected sources: %d\n", report.ExpectedTotal)
	fmt.Fprintf(&b, "- hits: %d\n", report.HitTotal)
	fmt.Fprintf(&b, "- recall@%d: %.4f\n", report.K, report.RecallAtK)

	for i, cr := range report.PerQuestion {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, cr.Question)
		fmt.Fprintf(&b, "- expected: %s\n", joinOrNone(cr.ExpectedSources))
		fmt.Fprintf(&b, "- retrieved: %s\n", joinOrNone(cr.RetrievedSources))
		fmt.Fprintf(&b, "- hits: %s\n", joinOrNone(cr.Hits))
		fmt.Fprintf(&b, "- misses: %s\n", joinOrNone(cr.Misses))
		fmt.Fprintf(&b, "- best score: %.4f\n", cr.BestScore)
		if cr.Error != "" {
			fmt.Fprintf(&b, "- error: %s\n", cr.Error)
		}
	}
	return b.String()
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
