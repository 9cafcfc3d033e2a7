package model

// Passage is one retrievable unit of a document.
type Passage struct {
	ID            int64     `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	SequenceIndex int       `json:"sequence_index"`
	Embedding     []float32 `json:"embedding,omitempty"`
	TokenSize     int       `json:"token_size"`
	Ctime         int64     `json:"ctime"`
}

// Embedded reports whether an embedding of the expected dimension is attached.
func (p *Passage) Embedded(dim int) bool {
	return len(p.Embedding) > 0 && len(p.Embedding) == dim
}

type RetrievedPassage struct {
	Passage
	Similarity float64 `json:"similarity"`
}

// DocumentSource summarises the passages stored for one uploaded file.
type DocumentSource struct {
	Source   string `json:"source"`
	Passages int    `json:"passages"`
	Ctime    int64  `json:"ctime"`
}
