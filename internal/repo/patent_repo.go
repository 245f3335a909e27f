package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/intellipatent/intellipatent/internal/model"
)

type PatentChunkRepo struct {
	db *sql.DB
}

func NewPatentChunkRepo(db *sql.DB) *PatentChunkRepo {
	return &PatentChunkRepo{db: db}
}

var chunkColumns = []string{
	"vector_id", "patent_number", "title", "description", "abstract", "claims_text", "detailed_summary",
}

// ListByVectorIDs fetches the metadata rows for the given ids and
// returns them in the input id order. Ids absent from the store are
// simply not present in the result; the caller decides how to treat the
// gap.
func (r *PatentChunkRepo) ListByVectorIDs(ctx context.Context, ids []string) ([]model.PatentChunk, error) {
	if len(ids) == 0 {
		return []model.PatentChunk{}, nil
	}
	where := map[string]interface{}{"vector_id": ids}
	sqlStr, args, err := builder.BuildSelect("patent_chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[string]model.PatentChunk, len(ids))
	for rows.Next() {
		var chunk model.PatentChunk
		if err := rows.Scan(
			&chunk.VectorID,
			&chunk.PatentNumber,
			&chunk.Title,
			&chunk.Description,
			&chunk.Abstract,
			&chunk.ClaimsText,
			&chunk.DetailedSummary,
		); err != nil {
			return nil, err
		}
		byID[chunk.VectorID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// SQL IN gives no ordering guarantee; re-sequence to the ranking
	// order the caller passed in.
	ordered := make([]model.PatentChunk, 0, len(byID))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			ordered = append(ordered, chunk)
		}
	}
	return ordered, nil
}

func (r *PatentChunkRepo) Upsert(ctx context.Context, chunk *model.PatentChunk) error {
	data := map[string]interface{}{
		"vector_id":        chunk.VectorID,
		"patent_number":    chunk.PatentNumber,
		"title":            chunk.Title,
		"description":      chunk.Description,
		"abstract":         chunk.Abstract,
		"claims_text":      chunk.ClaimsText,
		"detailed_summary": chunk.DetailedSummary,
	}
	sqlStr, args, err := builder.BuildReplaceInsert("patent_chunks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *PatentChunkRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patent_chunks")
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
