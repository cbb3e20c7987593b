package domain

// Stats summarises the knowledge base contents.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
	Sources        int
	SourceList     []string
	Kinds          []OriginKind
	Space          EmbeddingSpace
}
