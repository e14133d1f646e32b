package model

type VectorQuery struct {
	Embedding []float32
	CoachID   string
	Tiers     []AccessTier
	Limit     int
	Threshold float64
}

type SearchResult struct {
	ChunkID  string        `json:"chunk_id"`
	SourceID string        `json:"source_id"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Degraded bool          `json:"degraded"`
	Seq      int64         `json:"-"`
}
