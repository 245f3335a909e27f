package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellipatent/intellipatent/internal/ai"
	"github.com/intellipatent/intellipatent/internal/model"
	appErr "github.com/intellipatent/intellipatent/internal/pkg/errors"
	"github.com/intellipatent/intellipatent/internal/repo"
	"github.com/intellipatent/intellipatent/internal/vectorindex"
)

type stubProvider struct {
	classifyResp string
	classifyErr  error
	genericResp  string
	genericErr   error
	judgeResp    string
	judgeErr     error
	summaryResp  string
	summaryErr   error
	embedErr     error

	classifyCalls int
	genericCalls  int
	judgeCalls    int
	summaryCalls  int
	embedCalls    int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "query classifier"):
		p.classifyCalls++
		return p.classifyResp, p.classifyErr
	case strings.Contains(prompt, "'yes' or 'no'"):
		p.judgeCalls++
		return p.judgeResp, p.judgeErr
	case strings.Contains(prompt, "patent analyst"):
		p.summaryCalls++
		return p.summaryResp, p.summaryErr
	default:
		p.genericCalls++
		return p.genericResp, p.genericErr
	}
}

func (p *stubProvider) Embed(ctx context.Context, modelName, text, taskType string, dim int) ([]float32, error) {
	p.embedCalls++
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

type stubIndex struct {
	matches   []vectorindex.Match
	queryErr  error
	sparse    *model.SparseVector
	sparseErr error

	queryCalls  int
	sparseCalls int
	lastReq     vectorindex.QueryRequest
	upserted    []vectorindex.Vector
}

func (s *stubIndex) Query(ctx context.Context, req vectorindex.QueryRequest) ([]vectorindex.Match, error) {
	s.queryCalls++
	s.lastReq = req
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func (s *stubIndex) Upsert(ctx context.Context, vectors []vectorindex.Vector) error {
	s.upserted = append(s.upserted, vectors...)
	return nil
}

func (s *stubIndex) SparseEmbed(ctx context.Context, text string, forQuery bool) (*model.SparseVector, error) {
	s.sparseCalls++
	if s.sparseErr != nil {
		return nil, s.sparseErr
	}
	if s.sparse != nil {
		return s.sparse, nil
	}
	return &model.SparseVector{Indices: []uint32{7}, Values: []float32{0.5}}, nil
}

func (s *stubIndex) Stats(ctx context.Context) (vectorindex.Stats, error) {
	return vectorindex.Stats{}, nil
}

func newTestRepo(t *testing.T, chunks ...*model.PatentChunk) *repo.PatentChunkRepo {
	t.Helper()
	db, err := repo.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE patent_chunks (
		vector_id TEXT PRIMARY KEY,
		patent_number TEXT,
		title TEXT,
		description TEXT,
		abstract TEXT,
		claims_text TEXT,
		detailed_summary TEXT
	)`)
	require.NoError(t, err)
	r := repo.NewPatentChunkRepo(db)
	for _, c := range chunks {
		require.NoError(t, r.Upsert(context.Background(), c))
	}
	return r
}

func newTestService(t *testing.T, p *stubProvider, idx *stubIndex, chunks ...*model.PatentChunk) *SearchService {
	t.Helper()
	mgr := ai.NewManager(p, "test-model", ai.NewEmbedder(p, "test-embed", 4), ai.ManagerConfig{})
	return NewSearchService(mgr, idx, newTestRepo(t, chunks...), nil, SearchConfig{
		DefaultTopK:  5,
		MaxTopK:      20,
		ContextTurns: 6,
	})
}

func chunkRow(id, patent, title string) *model.PatentChunk {
	return &model.PatentChunk{
		VectorID:        id,
		PatentNumber:    patent,
		Title:           title,
		DetailedSummary: "detailed summary for " + id,
	}
}

func TestSearchIrrelevantLeavesStateUntouched(t *testing.T) {
	p := &stubProvider{classifyResp: "irrelevant"}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	state.ReplaceCache("earlier query", []model.RetrievedChunk{{VectorID: "a"}}, "earlier summary", false, true)
	state.AppendTurn("earlier query", "earlier answer")

	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "who is the prime minister of the UK?"})
	require.NoError(t, err)
	require.Empty(t, res.Results)
	require.Equal(t, RejectionMessage, res.Message)
	require.Empty(t, res.GenericAnswer)
	require.Empty(t, res.LiveSummary)

	require.Len(t, state.Turns, 1)
	require.Equal(t, "earlier query", state.LastQuery)
	require.Equal(t, "earlier summary", state.Summary)
	require.Zero(t, idx.queryCalls)
	require.Zero(t, p.embedCalls)
}

func TestSearchGenericSkipsRetrieval(t *testing.T) {
	p := &stubProvider{classifyResp: "generic", genericResp: "A patent grants exclusive rights to an invention."}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	state.ReplaceCache("earlier query", []model.RetrievedChunk{{VectorID: "a"}}, "earlier summary", true, true)

	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "what is a patent?"})
	require.NoError(t, err)
	require.Empty(t, res.Results)
	require.Equal(t, GenericAnswerMessage, res.Message)
	require.Equal(t, "A patent grants exclusive rights to an invention.", res.GenericAnswer)

	require.Zero(t, idx.queryCalls)
	require.Zero(t, idx.sparseCalls)
	require.Zero(t, p.embedCalls)
	// Context accrues but the cached retrieval stays intact.
	require.Len(t, state.Turns, 1)
	require.Equal(t, "earlier query", state.LastQuery)
	require.Len(t, state.Chunks, 1)
}

func TestSearchSpecificRefreshPreservesRankingAndSkipsGaps(t *testing.T) {
	p := &stubProvider{classifyResp: "specific"}
	idx := &stubIndex{matches: []vectorindex.Match{
		{VectorID: "c_chunk_0", Score: 0.9},
		{VectorID: "ghost_chunk_0", Score: 0.8},
		{VectorID: "a_chunk_0", Score: 0.7},
	}}
	svc := newTestService(t, p, idx,
		chunkRow("a_chunk_0", "US-1", "alpha"),
		chunkRow("c_chunk_0", "US-3", "gamma"),
	)

	state := model.NewConversationState("s1")
	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents", TopK: 3})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	require.Equal(t, "c_chunk_0", res.Results[0].VectorID)
	require.EqualValues(t, 0.9, res.Results[0].Score)
	require.Equal(t, "a_chunk_0", res.Results[1].VectorID)
	require.EqualValues(t, 0.7, res.Results[1].Score)
	require.Empty(t, res.LiveSummary)
	require.Nil(t, res.Related)

	require.Equal(t, 3, idx.lastReq.TopK)
	require.Nil(t, idx.lastReq.Sparse)
	require.Equal(t, "sensor patents", state.LastQuery)
	require.Len(t, state.Chunks, 2)
	require.Len(t, state.Turns, 1)
}

func TestSearchSpecificHybridSendsSparseVector(t *testing.T) {
	p := &stubProvider{classifyResp: "specific"}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "a_chunk_0", Score: 0.5}}}
	svc := newTestService(t, p, idx, chunkRow("a_chunk_0", "US-1", "alpha"))

	state := model.NewConversationState("s1")
	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents", Hybrid: true})
	require.NoError(t, err)
	require.Equal(t, 1, idx.sparseCalls)
	require.NotNil(t, idx.lastReq.Sparse)
	require.Equal(t, []uint32{7}, idx.lastReq.Sparse.Indices)
}

func TestSearchReuseIsIdempotent(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", judgeResp: "yes"}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	cached := []model.RetrievedChunk{
		{VectorID: "a_chunk_0", PatentNumber: "US-1", Title: "alpha", Score: 0.9},
		{VectorID: "b_chunk_0", PatentNumber: "US-2", Title: "beta", Score: 0.8},
	}
	state := model.NewConversationState("s1")
	state.ReplaceCache("laser patents", cached, "cached summary", false, true)

	for i := 0; i < 3; i++ {
		res, err := svc.Search(context.Background(), state, SearchRequest{Query: "tell me more about its claims", Summary: true})
		require.NoError(t, err)
		require.Equal(t, cached, res.Results)
		require.Equal(t, "cached summary", res.LiveSummary)
		require.NotNil(t, res.Related)
		require.True(t, *res.Related)
	}

	require.Zero(t, idx.queryCalls)
	require.Zero(t, p.embedCalls)
	require.Zero(t, p.summaryCalls)
	require.Equal(t, "laser patents", state.LastQuery)
	require.Equal(t, cached, state.Chunks)
	require.Equal(t, "cached summary", state.Summary)
	require.Empty(t, state.Turns)
}

func TestSearchFlagChangeForcesRefreshWithoutJudge(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", judgeResp: "yes"}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "a_chunk_0", Score: 0.5}}}
	svc := newTestService(t, p, idx, chunkRow("a_chunk_0", "US-1", "alpha"))

	state := model.NewConversationState("s1")
	state.ReplaceCache("laser patents", []model.RetrievedChunk{{VectorID: "old"}}, "", false, false)

	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "same topic again", Hybrid: true})
	require.NoError(t, err)
	require.Zero(t, p.judgeCalls)
	require.Equal(t, 1, idx.queryCalls)
	require.Nil(t, res.Related)
	require.Equal(t, "same topic again", state.LastQuery)
	require.True(t, state.Hybrid)
}

func TestSearchJudgeSaysNoRefreshesCache(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", judgeResp: "no"}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "b_chunk_0", Score: 0.4}}}
	svc := newTestService(t, p, idx, chunkRow("b_chunk_0", "US-2", "beta"))

	state := model.NewConversationState("s1")
	state.ReplaceCache("laser patents", []model.RetrievedChunk{{VectorID: "a_chunk_0"}}, "", false, false)

	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "unrelated drone patents"})
	require.NoError(t, err)
	require.Equal(t, 1, p.judgeCalls)
	require.Equal(t, 1, idx.queryCalls)
	require.NotNil(t, res.Related)
	require.False(t, *res.Related)
	require.Equal(t, "b_chunk_0", state.Chunks[0].VectorID)
	require.Equal(t, "unrelated drone patents", state.LastQuery)
}

func TestSearchJudgeErrorFallsBackToRefresh(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", judgeErr: context.DeadlineExceeded}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "b_chunk_0", Score: 0.4}}}
	svc := newTestService(t, p, idx, chunkRow("b_chunk_0", "US-2", "beta"))

	state := model.NewConversationState("s1")
	state.ReplaceCache("laser patents", []model.RetrievedChunk{{VectorID: "a_chunk_0"}}, "", false, false)

	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "follow up"})
	require.NoError(t, err)
	require.Equal(t, 1, idx.queryCalls)
	require.Nil(t, res.Related)
	require.Equal(t, "b_chunk_0", state.Chunks[0].VectorID)
}

func TestSearchEmptyRetrievalFallsBackToGenericAnswer(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", genericResp: "general background answer"}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "extremely obscure patent", Summary: true})
	require.NoError(t, err)
	require.Empty(t, res.Results)
	require.Empty(t, res.LiveSummary)
	require.Equal(t, EmptyRetrievalMessage, res.Message)
	require.Equal(t, "general background answer", res.GenericAnswer)
	require.Zero(t, p.summaryCalls)
	require.False(t, state.HasCache())
}

func TestSearchSummaryRequested(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", summaryResp: "## Invention Overview\nstuff"}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "a_chunk_0", Score: 0.5}}}
	svc := newTestService(t, p, idx, chunkRow("a_chunk_0", "US-1", "alpha"))

	state := model.NewConversationState("s1")
	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents", Summary: true})
	require.NoError(t, err)
	require.Equal(t, 1, p.summaryCalls)
	require.Equal(t, "## Invention Overview\nstuff", res.LiveSummary)
	require.Equal(t, "## Invention Overview\nstuff", state.Summary)
	require.True(t, state.WantSummary)
}

func TestSearchSummaryFailureDegradesToChunks(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", summaryErr: context.DeadlineExceeded}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "a_chunk_0", Score: 0.5}}}
	svc := newTestService(t, p, idx, chunkRow("a_chunk_0", "US-1", "alpha"))

	state := model.NewConversationState("s1")
	res, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents", Summary: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.Empty(t, res.LiveSummary)
	require.Empty(t, state.Summary)
	require.True(t, state.HasCache())
}

func TestSearchClassificationErrorAbortsTurn(t *testing.T) {
	p := &stubProvider{classifyResp: "maybe"}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "anything"})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrClassification)
	require.Empty(t, state.Turns)
	require.Zero(t, idx.queryCalls)
}

func TestSearchRetrievalErrorLeavesStateUntouched(t *testing.T) {
	p := &stubProvider{classifyResp: "specific"}
	idx := &stubIndex{queryErr: context.DeadlineExceeded}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	state.ReplaceCache("earlier", []model.RetrievedChunk{{VectorID: "a"}}, "s", true, true)

	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "new topic"})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrRetrieval)
	require.Equal(t, "earlier", state.LastQuery)
	require.Len(t, state.Chunks, 1)
	require.Empty(t, state.Turns)
}

func TestSearchEmbeddingErrorLeavesStateUntouched(t *testing.T) {
	p := &stubProvider{classifyResp: "specific", embedErr: context.DeadlineExceeded}
	idx := &stubIndex{}
	svc := newTestService(t, p, idx)

	state := model.NewConversationState("s1")
	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "new topic"})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrEmbedding)
	require.Zero(t, idx.queryCalls)
	require.Empty(t, state.Turns)
}

func TestSearchDimensionMismatchAbortsBeforeQuery(t *testing.T) {
	p := &stubProvider{classifyResp: "specific"}
	idx := &stubIndex{}
	// Embedder configured for 3 dimensions; the stub always emits 4.
	mgr := ai.NewManager(p, "test-model", ai.NewEmbedder(p, "test-embed", 3), ai.ManagerConfig{})
	svc := NewSearchService(mgr, idx, newTestRepo(t), nil, SearchConfig{DefaultTopK: 5, MaxTopK: 20})

	state := model.NewConversationState("s1")
	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents"})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrEmbedding)
	require.Zero(t, idx.queryCalls)
}

func TestSearchTopKClamps(t *testing.T) {
	p := &stubProvider{classifyResp: "specific"}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "a_chunk_0", Score: 0.5}}}
	svc := newTestService(t, p, idx, chunkRow("a_chunk_0", "US-1", "alpha"))

	state := model.NewConversationState("s1")
	_, err := svc.Search(context.Background(), state, SearchRequest{Query: "sensor patents", TopK: 500})
	require.NoError(t, err)
	require.Equal(t, 20, idx.lastReq.TopK)

	_, err = svc.Search(context.Background(), state, SearchRequest{Query: "other sensor patents"})
	require.NoError(t, err)
	require.Equal(t, 5, idx.lastReq.TopK)
}

func TestSearchSingleChunkWorkedExample(t *testing.T) {
	sectioned := "## Invention Overview\na\n## Key Features & Components\nb\n## Claims\nc\n## Applications\nd"
	p := &stubProvider{classifyResp: "specific", summaryResp: sectioned}
	idx := &stubIndex{matches: []vectorindex.Match{{VectorID: "JP-H10177520-A_chunk_0", Score: 0.83}}}
	svc := newTestService(t, p, idx,
		chunkRow("JP-H10177520-A_chunk_0", "JP-H10177520-A", "Data transfer control device"),
	)

	state := model.NewConversationState("s1")
	res, err := svc.Search(context.Background(), state, SearchRequest{
		Query:   "Summarize a patent about execution units in processors.",
		TopK:    1,
		Hybrid:  true,
		Summary: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.Equal(t, "JP-H10177520-A_chunk_0", res.Results[0].VectorID)
	require.Equal(t, "JP-H10177520-A", res.Results[0].PatentNumber)
	require.Equal(t, "Data transfer control device", res.Results[0].Title)
	require.True(t, ai.HasAllSections(res.LiveSummary))
	require.Equal(t, 1, idx.sparseCalls)
}
