package types

// SearchResult is one entry of a fused hybrid search result list
type SearchResult struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Score    float64  `json:"score"`    // Normalized fused score in [0, 1]
	RawScore float64  `json:"rawScore"` // Sum of weight/(k+rank) contributions
	Metadata Metadata `json:"metadata"`

	// Diagnostics: 1-based rank in each source list, 0 when absent
	VectorRank  int `json:"vectorRank,omitempty"`
	KeywordRank int `json:"keywordRank,omitempty"`
}
