package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/intellipatent/intellipatent/internal/model"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager owns every prompt the engine sends to the generative model:
// query classification, direct generic answers, follow-up judgement and
// the structured patent summary.
type Manager struct {
	classifier IGenerator
	answerer   IGenerator
	judge      IGenerator
	summarizer IGenerator
	embedder   IEmbedder
	cfg        ManagerConfig
}

func NewManager(p IProvider, model string, embedder IEmbedder, cfg ManagerConfig) *Manager {
	gen := NewGenerator(p, model)
	return &Manager{
		classifier: gen,
		answerer:   gen,
		judge:      gen,
		summarizer: gen,
		embedder:   embedder,
		cfg:        cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbeddingDimension() int {
	if m.embedder == nil {
		return 0
	}
	return m.embedder.Dimension()
}

// Classify maps a query to one of the three labels. Conversation
// context, when present, frames follow-up phrasing that would otherwise
// look irrelevant on its own. Output outside the label set is an error,
// never a silent default.
func (m *Manager) Classify(ctx context.Context, query string, convContext string) (model.Classification, error) {
	if m.classifier == nil {
		return "", fmt.Errorf("classifier not configured")
	}
	var ctxBlock string
	if convContext != "" {
		ctxBlock = fmt.Sprintf("\nConversation so far:\n%s\n", convContext)
	}
	prompt := fmt.Sprintf(`You are a query classifier for a Patent Q&A system.

Categories:
- 'irrelevant': the query is NOT related to patents, inventions, or intellectual property.
- 'generic': the query IS related to patents but is broad or definitional.
- 'specific': the query is patent-related and specific enough to match documents in a patent database.
%s
Respond with exactly one word: irrelevant, generic, or specific.

Query: %s`, ctxBlock, query)
	raw, err := m.generateText(ctx, m.classifier, prompt)
	if err != nil {
		return "", err
	}
	label, ok := model.ParseClassification(raw)
	if !ok {
		return "", fmt.Errorf("unexpected classifier output: %q", raw)
	}
	return label, nil
}

// GenericAnswer answers a broad patent question directly, without
// retrieval.
func (m *Manager) GenericAnswer(ctx context.Context, query string) (string, error) {
	if m.answerer == nil {
		return "", fmt.Errorf("answerer not configured")
	}
	prompt := fmt.Sprintf(`You are an expert in intellectual property law and patents.
Answer the following general question in a clear, concise, and accurate manner:

Question: %s

Provide structured and informative content without unnecessary details.`, query)
	return m.generateText(ctx, m.answerer, prompt)
}

// JudgeFollowUp decides whether a new question continues the subject of
// the cached retrieval. True means the cached results can be reused.
func (m *Manager) JudgeFollowUp(ctx context.Context, prevQuestion, prevAnswer, newQuestion string) (bool, error) {
	if m.judge == nil {
		return false, fmt.Errorf("judge not configured")
	}
	prompt := fmt.Sprintf(`Previous question: %s
Previous answer: %s
New follow-up question: %s

Is the new follow-up question about the same subject as the previous question and its answer?
Consider topics, themes, technical domains, and conceptual relationships.
Respond only with 'yes' or 'no'.`, prevQuestion, prevAnswer, newQuestion)
	raw, err := m.generateText(ctx, m.judge, prompt)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(answer, "yes"):
		return true, nil
	case strings.HasPrefix(answer, "no"):
		return false, nil
	}
	return false, fmt.Errorf("unexpected judge output: %q", raw)
}

// Summarize merges the retrieved rows into one answer with the four
// canonical sections. Callers must not invoke it with zero rows.
func (m *Manager) Summarize(ctx context.Context, query string, rows []model.RetrievedChunk) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("summarizer not configured")
	}
	var sb strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&sb, "Patent: %s\nTitle: %s\nSummary: %s\n\n", row.PatentNumber, row.Title, row.DetailedSummary)
	}
	prompt := fmt.Sprintf(`You are an expert patent analyst. Based on the user's query '%s', provide a comprehensive and structured summary of the following patent details.

Your summary must be broken down into exactly these sections, in this order:

## Invention Overview
## Key Features & Components
## Claims
## Applications

Synthesize across all patents below; do not summarize each one separately.
Only include information present in the given data. Do not make up facts.

Patent details from DB:
%s`, query, sb.String())
	return m.generateText(ctx, m.summarizer, prompt)
}

// SummarizeDocument produces the stored per-patent summary at corpus
// load time, from the patent's own abstract and claims text.
func (m *Manager) SummarizeDocument(ctx context.Context, text string) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("summarizer not configured")
	}
	prompt := fmt.Sprintf(`You are an expert patent analyst. Provide a comprehensive and structured summary of the following patent text, capturing the invention's purpose, its key technical features, what the claims protect, and its potential applications.

Do not include any introductory phrases or greetings. Only include information present in the given text.

Patent text:
%s`, text)
	return m.generateText(ctx, m.summarizer, prompt)
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	if max := m.cfg.MaxInputChars; max > 0 && len(prompt) > max {
		return "", fmt.Errorf("prompt exceeds %d chars", max)
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}
