package model

type Paper struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Abstract          string    `json:"abstract"`
	Authors           []string  `json:"authors"`
	URL               string    `json:"url"`
	PDFURL            string    `json:"pdf_url"`
	TitleEmbedding    []float32 `json:"-"`
	AbstractEmbedding []float32 `json:"-"`
	ContentHash       string    `json:"content_hash"`
	Mtime             int64     `json:"mtime"`
}

func (p *Paper) Kind() ItemKind {
	return ItemKindPaper
}

func (p *Paper) GetTitle() string {
	return p.Title
}

func (p *Paper) GetAbstract() string {
	return p.Abstract
}

// GetLink prefers the landing page and falls back to the pdf.
func (p *Paper) GetLink() string {
	if p.URL != "" {
		return p.URL
	}
	return p.PDFURL
}

func (p *Paper) GetAuthors() []string {
	if p.Authors == nil {
		return []string{}
	}
	return p.Authors
}

func (p *Paper) Embeddings() [][]float32 {
	return [][]float32{p.TitleEmbedding, p.AbstractEmbedding}
}
