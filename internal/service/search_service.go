package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/ai"
	"github.com/intellipatent/intellipatent/internal/model"
	appErr "github.com/intellipatent/intellipatent/internal/pkg/errors"
	"github.com/intellipatent/intellipatent/internal/repo"
	"github.com/intellipatent/intellipatent/internal/vectorindex"
)

// RejectionMessage is returned verbatim for queries outside the patent
// domain.
const RejectionMessage = "Your query is not relevant to patents or intellectual property."

// GenericAnswerMessage accompanies a direct answer to a broad
// patent-related question.
const GenericAnswerMessage = "Your query is patent-related but too general; here's a direct answer."

// EmptyRetrievalMessage prefaces the generic fallback when a refresh
// finds nothing in the index.
const EmptyRetrievalMessage = "No relevant matches found; here's a direct answer."

// SearchRequest is one conversation turn as the caller framed it.
type SearchRequest struct {
	Query   string
	TopK    int
	Hybrid  bool
	Summary bool
}

// FollowUpJudge decides whether a follow-up question stays on the
// subject of the previous retrieval, in which case the cached results
// are reused instead of hitting the index again.
type FollowUpJudge interface {
	Related(ctx context.Context, prevQuestion, prevAnswer, newQuestion string) (bool, error)
}

type FollowUpJudgeFunc func(ctx context.Context, prevQuestion, prevAnswer, newQuestion string) (bool, error)

func (f FollowUpJudgeFunc) Related(ctx context.Context, prevQuestion, prevAnswer, newQuestion string) (bool, error) {
	return f(ctx, prevQuestion, prevAnswer, newQuestion)
}

type SearchConfig struct {
	DefaultTopK  int
	MaxTopK      int
	ContextTurns int
}

// SearchService routes each turn through classify, then either a direct
// answer or the retrieval pipeline, maintaining per-session state.
type SearchService struct {
	manager *ai.Manager
	index   vectorindex.Index
	patents *repo.PatentChunkRepo
	judge   FollowUpJudge
	cfg     SearchConfig
}

func NewSearchService(manager *ai.Manager, index vectorindex.Index, patents *repo.PatentChunkRepo, judge FollowUpJudge, cfg SearchConfig) *SearchService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 20
	}
	if judge == nil {
		judge = FollowUpJudgeFunc(manager.JudgeFollowUp)
	}
	return &SearchService{
		manager: manager,
		index:   index,
		patents: patents,
		judge:   judge,
		cfg:     cfg,
	}
}

// Search runs one conversation turn. Session state is only mutated on a
// successful path; any aborting error leaves it exactly as it was.
func (s *SearchService) Search(ctx context.Context, state *model.ConversationState, req SearchRequest) (*model.SearchResult, error) {
	state.Lock()
	defer state.Unlock()

	logger := logutil.GetLogger(ctx).With(zap.String("session_id", state.ID), zap.String("query", req.Query))

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}

	label, err := s.manager.Classify(ctx, req.Query, state.ContextText(s.cfg.ContextTurns))
	if err != nil {
		logger.Error("classification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrClassification, err)
	}
	logger.Info("query classified", zap.String("label", string(label)))

	switch label {
	case model.ClassIrrelevant:
		return &model.SearchResult{
			Results: []model.RetrievedChunk{},
			Message: RejectionMessage,
		}, nil
	case model.ClassGeneric:
		return s.answerGeneric(ctx, state, req.Query, GenericAnswerMessage)
	default:
		return s.answerSpecific(ctx, logger, state, req, topK)
	}
}

func (s *SearchService) answerGeneric(ctx context.Context, state *model.ConversationState, query, message string) (*model.SearchResult, error) {
	answer, err := s.manager.GenericAnswer(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrGeneration, err)
	}
	state.AppendTurn(query, answer)
	return &model.SearchResult{
		Results:       []model.RetrievedChunk{},
		Message:       message,
		GenericAnswer: answer,
	}, nil
}

func (s *SearchService) answerSpecific(ctx context.Context, logger *zap.Logger, state *model.ConversationState, req SearchRequest, topK int) (*model.SearchResult, error) {
	var related *bool
	// Reuse is only on the table when the cached turn was produced with
	// the same hybrid and summary flags; a flag change always refreshes.
	if state.HasCache() && state.Hybrid == req.Hybrid && state.WantSummary == req.Summary {
		reuse, err := s.judge.Related(ctx, state.LastQuery, s.cachedAnswerText(state), req.Query)
		if err != nil {
			logger.Warn("follow-up judgement failed, refreshing", zap.Error(err))
		} else {
			related = &reuse
		}
		if related != nil && *related {
			logger.Info("reusing cached retrieval", zap.String("cached_query", state.LastQuery))
			// Reuse answers from the cache alone: no retrieval, no new
			// turn, no state mutation of any kind.
			chunks := state.CachedChunks()
			var summary string
			if state.WantSummary {
				summary = state.Summary
			}
			return &model.SearchResult{
				Results:     chunks,
				LiveSummary: summary,
				Related:     related,
			}, nil
		}
	}

	chunks, err := s.retrieve(ctx, logger, req, topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Info("retrieval returned no usable chunks, answering generically")
		res, err := s.answerGeneric(ctx, state, req.Query, EmptyRetrievalMessage)
		if err != nil {
			return nil, err
		}
		res.Related = related
		return res, nil
	}

	var summary string
	if req.Summary {
		summary, err = s.manager.Summarize(ctx, req.Query, chunks)
		if err != nil {
			// Degrade to the bare chunks rather than failing the turn.
			logger.Warn("summary generation failed", zap.Error(err))
			summary = ""
		} else if !ai.HasAllSections(summary) {
			logger.Warn("summary missing expected sections", zap.Strings("found", ai.SummarySections(summary)))
		}
	}

	state.ReplaceCache(req.Query, chunks, summary, req.Hybrid, req.Summary)
	state.AppendTurn(req.Query, s.turnAnswerText(chunks, summary))
	return &model.SearchResult{
		Results:     chunks,
		LiveSummary: summary,
		Related:     related,
	}, nil
}

// retrieve runs embed, index query and the metadata join. Hits without
// a metadata row are dropped; ranking order is preserved for the rest.
func (s *SearchService) retrieve(ctx context.Context, logger *zap.Logger, req SearchRequest, topK int) ([]model.RetrievedChunk, error) {
	dense, err := s.manager.Embed(ctx, req.Query, "RETRIEVAL_QUERY")
	if err != nil {
		logger.Error("dense embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbedding, err)
	}
	if want := s.manager.EmbeddingDimension(); want > 0 && len(dense) != want {
		logger.Error("embedding dimension mismatch", zap.Int("got", len(dense)), zap.Int("want", want))
		return nil, fmt.Errorf("%w: embedding has %d dimensions, index expects %d", appErr.ErrEmbedding, len(dense), want)
	}
	var sparse *model.SparseVector
	if req.Hybrid {
		sparse, err = s.index.SparseEmbed(ctx, req.Query, true)
		if err != nil {
			logger.Error("sparse embedding failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", appErr.ErrEmbedding, err)
		}
	}

	matches, err := s.index.Query(ctx, vectorindex.QueryRequest{
		Dense:  dense,
		Sparse: sparse,
		TopK:   topK,
	})
	if err != nil {
		logger.Error("index query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrRetrieval, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(matches))
	scores := make(map[string]float32, len(matches))
	for _, m := range matches {
		ids = append(ids, m.VectorID)
		scores[m.VectorID] = m.Score
	}
	rows, err := s.patents.ListByVectorIDs(ctx, ids)
	if err != nil {
		logger.Error("metadata join failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrRetrieval, err)
	}

	found := make(map[string]struct{}, len(rows))
	chunks := make([]model.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		found[row.VectorID] = struct{}{}
		chunks = append(chunks, model.RetrievedChunk{
			VectorID:        row.VectorID,
			PatentNumber:    row.PatentNumber,
			Title:           row.Title,
			DetailedSummary: row.DetailedSummary,
			Score:           scores[row.VectorID],
		})
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			logger.Warn("index hit has no metadata row, dropping", zap.String("vector_id", id))
		}
	}
	return chunks, nil
}

// cachedAnswerText reconstructs what the session last answered with, for
// the follow-up judge prompt.
func (s *SearchService) cachedAnswerText(state *model.ConversationState) string {
	if state.Summary != "" {
		return state.Summary
	}
	return s.turnAnswerText(state.Chunks, "")
}

func (s *SearchService) turnAnswerText(chunks []model.RetrievedChunk, summary string) string {
	if summary != "" {
		return summary
	}
	titles := make([]string, 0, len(chunks))
	for _, c := range chunks {
		titles = append(titles, fmt.Sprintf("%s (%s)", c.Title, c.PatentNumber))
	}
	return "Retrieved patents: " + strings.Join(titles, "; ")
}
