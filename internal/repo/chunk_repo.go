package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/dbutil"
)

type ChunkCount struct {
	Stored int
	Total  int
}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch writes all chunks in one transaction; either every row lands or none does.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return err
		}
		data = append(data, map[string]interface{}{
			"id":           chunk.ID,
			"source_id":    chunk.SourceID,
			"title":        chunk.Title,
			"content":      chunk.Content,
			"chunk_index":  chunk.ChunkIndex,
			"total_chunks": chunk.TotalChunks,
			"embedding":    pgvector.NewVector(chunk.Embedding),
			"metadata":     string(meta),
			"is_active":    true,
			"ctime":        chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("document_chunks", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CountBySources reports stored and expected chunk counts per source.
func (r *ChunkRepo) CountBySources(ctx context.Context, sourceIDs []string) (map[string]ChunkCount, error) {
	result := make(map[string]ChunkCount, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return result, nil
	}
	query := `SELECT source_id, COUNT(*), MAX(total_chunks) FROM document_chunks WHERE source_id IN (?) GROUP BY source_id`
	query, args, err := sqlx.In(query, sourceIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var sourceID string
		var count ChunkCount
		if err := rows.Scan(&sourceID, &count.Stored, &count.Total); err != nil {
			return nil, err
		}
		result[sourceID] = count
	}
	return result, rows.Err()
}

// MatchCoachDocuments calls the match_coach_documents function: cosine
// similarity over chunks granted to the coach, best first.
func (r *ChunkRepo) MatchCoachDocuments(ctx context.Context, q model.VectorQuery) ([]model.SearchResult, error) {
	const query = `
		SELECT chunk_id, chunk_seq, chunk_source_id, chunk_title, chunk_content, chunk_metadata, similarity
		FROM match_coach_documents($1, $2, $3, $4, $5)
	`
	rows, err := r.db.QueryContext(ctx, query,
		pgvector.NewVector(q.Embedding),
		q.CoachID,
		q.Threshold,
		q.Limit,
		pq.Array(tierStrings(q.Tiers)),
	)
	if err != nil {
		return nil, fmt.Errorf("match_coach_documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var results []model.SearchResult
	for rows.Next() {
		var item model.SearchResult
		var meta []byte
		if err := rows.Scan(&item.ChunkID, &item.Seq, &item.SourceID, &item.Title, &item.Content, &meta, &item.Score); err != nil {
			return nil, err
		}
		if err := decodeChunkMetadata(meta, &item.Metadata); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// ListActive returns the newest active chunks granted to the coach without
// any ranking.
func (r *ChunkRepo) ListActive(ctx context.Context, coachID string, tiers []model.AccessTier, limit int) ([]model.SearchResult, error) {
	const query = `
		SELECT c.id, c.seq, c.source_id, c.title, c.content, c.metadata
		FROM document_chunks c
		JOIN coach_document_access a ON a.document_id = c.id
		WHERE a.coach_id = $1
			AND c.is_active
			AND (cardinality($2::text[]) = 0 OR a.access_tier = ANY($2::text[]))
		ORDER BY c.seq DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, coachID, pq.Array(tierStrings(tiers)), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var results []model.SearchResult
	for rows.Next() {
		var item model.SearchResult
		var meta []byte
		if err := rows.Scan(&item.ChunkID, &item.Seq, &item.SourceID, &item.Title, &item.Content, &meta); err != nil {
			return nil, err
		}
		if err := decodeChunkMetadata(meta, &item.Metadata); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func decodeChunkMetadata(raw []byte, dst *model.ChunkMetadata) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func tierStrings(tiers []model.AccessTier) []string {
	out := make([]string, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, string(t))
	}
	return out
}
