package model

type Workshop struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	Abstract          string    `json:"abstract"`
	URL               string    `json:"url"`
	Topics            []string  `json:"topics"`
	AbstractEmbedding []float32 `json:"-"`
	ContentHash       string    `json:"content_hash"`
	Mtime             int64     `json:"mtime"`
}

func (w *Workshop) Kind() ItemKind {
	return ItemKindWorkshop
}

func (w *Workshop) GetTitle() string {
	return w.Title
}

func (w *Workshop) GetAbstract() string {
	return w.Abstract
}

func (w *Workshop) GetLink() string {
	return w.URL
}

// GetAuthors is always nil for workshops, which serializes as null.
func (w *Workshop) GetAuthors() []string {
	return nil
}

func (w *Workshop) Embeddings() [][]float32 {
	return [][]float32{w.AbstractEmbedding}
}
