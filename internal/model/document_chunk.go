package model

import "fmt"

type ChunkMetadata struct {
	CharLength int        `json:"char_length"`
	Position   int        `json:"position"`
	AccessTier AccessTier `json:"access_tier"`
	Tags       []string   `json:"tags,omitempty"`
}

type DocumentChunk struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"source_id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	ChunkIndex  int           `json:"chunk_index"`
	TotalChunks int           `json:"total_chunks"`
	Embedding   []float32     `json:"-"`
	Metadata    ChunkMetadata `json:"metadata"`
	Ctime       int64         `json:"ctime"`
}

func ChunkTitle(sourceTitle string, index, total int) string {
	return fmt.Sprintf("%s - Part %d/%d", sourceTitle, index+1, total)
}

// Validate checks the index bounds and that the vector has exactly dim entries.
func (c *DocumentChunk) Validate(dim int) error {
	if c.TotalChunks <= 0 || c.ChunkIndex < 0 || c.ChunkIndex >= c.TotalChunks {
		return fmt.Errorf("chunk index %d out of range [0,%d)", c.ChunkIndex, c.TotalChunks)
	}
	if dim > 0 && len(c.Embedding) != dim {
		return fmt.Errorf("chunk %d embedding has %d values, want %d", c.ChunkIndex, len(c.Embedding), dim)
	}
	return nil
}
