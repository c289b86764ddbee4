package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// DefaultGroundingSystemPrompt is used when no prompt store is configured.
const DefaultGroundingSystemPrompt = `You are an internal assistant that MUST answer strictly using the provided SOURCES.
Do not use outside knowledge. If the answer is not supported by the sources, reply exactly: "Not in KB yet."

Mark every factual claim with the label of the source that supports it, like [S1] or [S2].
Only use labels that appear in the SOURCES. Do not add a Sources section; it is appended for you.`

// DefaultGroundingUserPrompt frames the question. Placeholders: sources, question.
const DefaultGroundingUserPrompt = "SOURCES:\n%s\n\nQuestion: %s\n\nAnswer:"

// modelRefusalMarker is the phrase the system prompt asks the model to use
// when the sources do not cover the question.
const modelRefusalMarker = "Not in KB yet"

var (
	labelGroupPattern = regexp.MustCompile(`\[\s*S\d+(?:\s*,\s*S\d+)*\s*\]`)
	labelPattern      = regexp.MustCompile(`S(\d+)`)
	sourcesHeading    = regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?\**Sources\**[ \t]*:?[ \t]*\**[ \t]*$`)
)

// Composition is the outcome of composing an answer.
type Composition struct {
	// Text is the cited answer with its Sources section, or RefusalText.
	Text string

	// Status is answered or not_in_kb.
	Status domain.QueryStatus

	// Reason explains a refusal.
	Reason string

	// Labelled are all chunks offered to the model, labelled S1..Sn.
	Labelled []domain.SourceRef

	// Cited are the labelled chunks the answer cites, in label order.
	Cited []domain.SourceRef
}

// AnswerComposer builds the grounding prompt, calls the generation provider
// and enforces citations on the result.
type AnswerComposer struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	timeout  time.Duration
	defaults driven.GenerateOptions
	metrics  driven.PipelineMetrics
}

// NewAnswerComposer creates a composer. prompts and metrics may be nil.
func NewAnswerComposer(
	llm driven.LLMService,
	prompts driven.PromptStore,
	settings domain.LLMSettings,
	timeout time.Duration,
	metrics driven.PipelineMetrics,
) *AnswerComposer {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &AnswerComposer{
		llm:     llm,
		prompts: prompts,
		timeout: timeout,
		defaults: driven.GenerateOptions{
			MaxTokens:   settings.MaxTokens,
			Temperature: settings.Temperature,
		},
		metrics: metrics,
	}
}

// Compose answers question from the decision's chunks.
//
// A refusing decision returns RefusalText without calling the provider.
// A generated answer without any label marker, or citing a label that was
// not offered, is replaced by RefusalText.
func (c *AnswerComposer) Compose(
	ctx context.Context,
	question string,
	decision domain.Decision,
	temperature *float64,
) (*Composition, error) {
	if !decision.Accepted {
		logger.Debug("Gating refused (%s): best %.4f < threshold %.4f",
			decision.Reason, decision.BestScore, decision.Threshold)
		return &Composition{
			Text:   domain.RefusalText,
			Status: domain.QueryStatusNotInKB,
			Reason: string(decision.Reason),
		}, nil
	}

	ctx, span := tracer.Start(ctx, "AnswerComposer.Compose")
	defer span.End()

	if c.llm == nil {
		return nil, errs.Wrap(domain.ErrLLMUnavailable, errs.CodeConfigurationCredentialMissing, "compose")
	}

	labelled := LabelSources(decision.Chunks)
	prompt := fmt.Sprintf(c.loadPrompt(driven.PromptGroundingUser, DefaultGroundingUserPrompt),
		BuildContextBlock(decision.Chunks, labelled), question)

	opts := c.defaults
	opts.System = c.loadPrompt(driven.PromptGroundingSystem, DefaultGroundingSystemPrompt)
	if temperature != nil {
		opts.Temperature = *temperature
	}

	raw, err := c.generate(ctx, prompt, opts)
	if err != nil {
		return nil, errs.WrapProvider(err, errs.CodeGenerationProviderTimeout, errs.CodeGenerationProviderFailure,
			"generate answer", errs.FieldProvider(c.llm.ModelName()))
	}

	body := strings.TrimSpace(StripSourcesSection(raw))
	if body == "" {
		return nil, errs.New(errs.CodeGenerationResponseMalformed, "empty answer from provider",
			errs.FieldProvider(c.llm.ModelName()))
	}

	comp := &Composition{Labelled: labelled}
	labels := ExtractLabels(body)
	span.SetAttributes(attribute.Int("answer.labels", len(labels)))

	switch {
	case len(labels) == 0 && strings.Contains(body, modelRefusalMarker):
		comp.Text, comp.Status, comp.Reason = domain.RefusalText, domain.QueryStatusNotInKB, domain.ReasonModelRefused
		return comp, nil
	case len(labels) == 0:
		logger.Warn("Answer rejected: no citation labels")
		comp.Text, comp.Status, comp.Reason = domain.RefusalText, domain.QueryStatusNotInKB, domain.ReasonUncitedAnswer
		return comp, nil
	case labels[0] < 1 || labels[len(labels)-1] > len(labelled):
		logger.Warn("Answer rejected: cites labels %v but only S1..S%d were offered", labels, len(labelled))
		comp.Text, comp.Status, comp.Reason = domain.RefusalText, domain.QueryStatusNotInKB, domain.ReasonFabricatedLabel
		return comp, nil
	}

	comp.Cited = make([]domain.SourceRef, 0, len(labels))
	for _, n := range labels {
		comp.Cited = append(comp.Cited, labelled[n-1])
	}
	comp.Text = body + "\n\n" + RenderSourcesSection(comp.Cited)
	comp.Status = domain.QueryStatusAnswered
	return comp, nil
}

func (c *AnswerComposer) generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	begin := time.Now()
	out, err := c.llm.Generate(ctx, prompt, opts)
	c.metrics.ObserveProviderCall(driven.CallGeneration, time.Since(begin), err)
	return out, err
}

func (c *AnswerComposer) loadPrompt(name, fallback string) string {
	if c.prompts == nil {
		return fallback
	}
	p, err := c.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		if err != nil {
			logger.Warn("Prompt %s unavailable, using default: %v", name, err)
		}
		return fallback
	}
	return p
}

// LabelSources assigns S1..Sn to chunks in retrieval order.
func LabelSources(chunks []domain.ScoredChunk) []domain.SourceRef {
	refs := make([]domain.SourceRef, len(chunks))
	for i, sc := range chunks {
		refs[i] = domain.SourceRef{
			Label:    "S" + strconv.Itoa(i+1),
			ChunkRef: sc.Chunk.EmbeddingRef(),
			DocID:    sc.Chunk.DocID,
			Title:    sc.Title,
			Path:     sc.Path,
			Locator:  sc.Chunk.Locator(),
			Score:    sc.Score,
		}
	}
	return refs
}

// BuildContextBlock renders labelled chunks for the prompt, one block per chunk:
//
//	[S1] Title (locator)
//	chunk text
func BuildContextBlock(chunks []domain.ScoredChunk, refs []domain.SourceRef) string {
	blocks := make([]string, len(chunks))
	for i, sc := range chunks {
		blocks[i] = fmt.Sprintf("[%s] %s (%s)\n%s", refs[i].Label, sc.DisplayName(), refs[i].Locator, sc.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// ExtractLabels returns the distinct label numbers cited in text, ascending.
// Both [S1] and grouped [S1, S2] markers are recognised.
func ExtractLabels(text string) []int {
	seen := make(map[int]bool)
	for _, group := range labelGroupPattern.FindAllString(text, -1) {
		for _, m := range labelPattern.FindAllStringSubmatch(group, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			seen[n] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for n := range seen {
		labels = append(labels, n)
	}
	sort.Ints(labels)
	return labels
}

// StripSourcesSection removes a trailing Sources section written by the model.
func StripSourcesSection(text string) string {
	locs := sourcesHeading.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	last := locs[len(locs)-1]
	if strings.TrimSpace(text[:last[0]]) == "" {
		return text
	}
	return text[:last[0]]
}

// RenderSourcesSection lists each cited source once, in label order, as
// "- [Sn] <title or path> (<locator>)".
func RenderSourcesSection(cited []domain.SourceRef) string {
	var b strings.Builder
	b.WriteString("Sources:")
	for _, ref := range cited {
		b.WriteString("\n- [")
		b.WriteString(ref.Label)
		b.WriteString("] ")
		b.WriteString(sourceName(ref))
		b.WriteString(" (")
		b.WriteString(ref.Locator)
		b.WriteString(")")
	}
	return b.String()
}

func sourceName(ref domain.SourceRef) string {
	if ref.Title != "" {
		return ref.Title
	}
	return ref.Path
}
