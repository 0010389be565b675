package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results (top-k).
	Limit int

	// Vendor restricts results to one vendor when non-empty.
	Vendor string

	// Device restricts results to one device when non-empty.
	Device string

	// DisableRerank skips the cross-encoder pass even when a reranker
	// is configured.
	DisableRerank bool
}

// SearchFilter is the metadata restriction pushed down to the search
// backends. Empty fields match everything.
type SearchFilter struct {
	Vendor string
	Device string
}

// Filter derives the backend filter from the options.
func (o SearchOptions) Filter() SearchFilter {
	return SearchFilter{Vendor: o.Vendor, Device: o.Device}
}

// IsZero reports whether the filter imposes no restriction.
func (f SearchFilter) IsZero() bool {
	return f.Vendor == "" && f.Device == ""
}

// Matches reports whether chunk metadata satisfies the filter.
func (f SearchFilter) Matches(m ChunkMetadata) bool {
	if f.Vendor != "" && f.Vendor != m.Vendor {
		return false
	}
	if f.Device != "" && f.Device != m.Device {
		return false
	}
	return true
}

// SearchResult is a single ranked hit. Ephemeral: produced per query,
// never persisted.
type SearchResult struct {
	// Metadata identifies the register this result describes.
	Metadata ChunkMetadata `json:"metadata"`

	// Text is the full chunk text.
	Text string `json:"text"`

	// Snippet is a short excerpt around the first query-term match,
	// for terminal display.
	Snippet string `json:"snippet,omitempty"`

	// Score is the relevance score after fusion (and reranking, when
	// enabled). Comparable only within one response.
	Score float64 `json:"score"`
}
