package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/ai"
	"github.com/intellipatent/intellipatent/internal/chunker"
	"github.com/intellipatent/intellipatent/internal/model"
	"github.com/intellipatent/intellipatent/internal/repo"
	"github.com/intellipatent/intellipatent/internal/vectorindex"
)

// patentDocument mirrors the raw patent JSON export. Every localized
// field carries a language tag; only the EN entries are indexed.
type patentDocument struct {
	PatentNumber string          `json:"patent_number"`
	Titles       []localizedText `json:"titles"`
	Abstracts    []localizedText `json:"abstracts"`
	Descriptions []localizedText `json:"descriptions"`
	Claims       []claimsBlock   `json:"claims"`
}

type localizedText struct {
	Lang            string `json:"lang"`
	Text            string `json:"text"`
	ParagraphMarkup string `json:"paragraph_markup"`
}

type claimsBlock struct {
	Claims []localizedText `json:"claims"`
}

func englishText(entries []localizedText) string {
	for _, e := range entries {
		if e.Lang == "EN" {
			if e.Text != "" {
				return e.Text
			}
			return e.ParagraphMarkup
		}
	}
	return ""
}

func (d *patentDocument) claimsText() string {
	if len(d.Claims) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Claims[0].Claims))
	for _, c := range d.Claims[0].Claims {
		if c.Lang == "EN" && c.ParagraphMarkup != "" {
			parts = append(parts, c.ParagraphMarkup)
		}
	}
	return strings.Join(parts, " ")
}

type LoadStats struct {
	Files   int
	Patents int
	Chunks  int
	Skipped int
}

// LoaderService ingests patent JSON dumps: chunk, summarize, embed both
// representations, upsert to the index and store the metadata rows.
type LoaderService struct {
	manager  *ai.Manager
	index    vectorindex.Index
	patents  *repo.PatentChunkRepo
	splitter *chunker.Splitter
}

func NewLoaderService(manager *ai.Manager, index vectorindex.Index, patents *repo.PatentChunkRepo) *LoaderService {
	return &LoaderService{
		manager:  manager,
		index:    index,
		patents:  patents,
		splitter: chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap),
	}
}

// LoadDir processes every *.json file under dir. Files that fail to
// parse or have no English abstract/claims are skipped with a warning;
// only infrastructure failures abort the load.
func (s *LoaderService) LoadDir(ctx context.Context, dir string) (*LoadStats, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list patent files: %w", err)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("dir", dir))
	logger.Info("loading patent corpus", zap.Int("files", len(files)))

	stats := &LoadStats{Files: len(files)}
	for _, file := range files {
		if err := s.loadFile(ctx, file, stats); err != nil {
			return stats, err
		}
	}
	logger.Info("corpus load finished",
		zap.Int("patents", stats.Patents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (s *LoaderService) loadFile(ctx context.Context, file string, stats *LoadStats) error {
	logger := logutil.GetLogger(ctx).With(zap.String("file", filepath.Base(file)))

	raw, err := os.ReadFile(file)
	if err != nil {
		logger.Warn("failed to read patent file, skipping", zap.Error(err))
		stats.Skipped++
		return nil
	}
	var doc patentDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("failed to parse patent file, skipping", zap.Error(err))
		stats.Skipped++
		return nil
	}
	if doc.PatentNumber == "" {
		doc.PatentNumber = strings.TrimSuffix(filepath.Base(file), ".json")
	}

	title := englishText(doc.Titles)
	abstract := englishText(doc.Abstracts)
	description := englishText(doc.Descriptions)
	claims := doc.claimsText()
	combined := strings.TrimSpace(abstract + " " + claims)
	if combined == "" {
		logger.Warn("no English abstract or claims, skipping", zap.String("patent_number", doc.PatentNumber))
		stats.Skipped++
		return nil
	}

	summary, err := s.manager.SummarizeDocument(ctx, combined)
	if err != nil {
		logger.Warn("document summary failed, storing without one", zap.Error(err))
		summary = ""
	}

	chunks := s.splitter.Split(combined)
	for i, chunk := range chunks {
		vectorID := fmt.Sprintf("%s_chunk_%d", doc.PatentNumber, i)
		if err := s.indexChunk(ctx, vectorID, chunk, &doc, title, description, abstract, claims, summary); err != nil {
			return fmt.Errorf("index chunk %s: %w", vectorID, err)
		}
		stats.Chunks++
	}
	stats.Patents++
	logger.Info("patent indexed", zap.String("patent_number", doc.PatentNumber), zap.Int("chunks", len(chunks)))
	return nil
}

func (s *LoaderService) indexChunk(ctx context.Context, vectorID, chunk string, doc *patentDocument, title, description, abstract, claims, summary string) error {
	dense, err := s.manager.Embed(ctx, chunk, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return fmt.Errorf("dense embedding: %w", err)
	}
	sparse, err := s.index.SparseEmbed(ctx, chunk, false)
	if err != nil {
		return fmt.Errorf("sparse embedding: %w", err)
	}
	if err := s.index.Upsert(ctx, []vectorindex.Vector{{
		ID:     vectorID,
		Dense:  dense,
		Sparse: sparse,
		Metadata: map[string]interface{}{
			"patent_number": doc.PatentNumber,
			"title":         title,
		},
	}}); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	return s.patents.Upsert(ctx, &model.PatentChunk{
		VectorID:        vectorID,
		PatentNumber:    doc.PatentNumber,
		Title:           title,
		Description:     description,
		Abstract:        abstract,
		ClaimsText:      claims,
		DetailedSummary: summary,
	})
}
