package model

// PaperRecord is one entry of a crawled papers file.
type PaperRecord struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"url"`
	PDFURL   string   `json:"pdf_url"`
}

// WorkshopRecord is one entry of a crawled workshops file, keyed by
// category and then by workshop title.
type WorkshopRecord struct {
	URL      string   `json:"url"`
	Abstract string   `json:"abstract"`
	Topics   []string `json:"topics"`
}

type WorkshopsByCategory map[string]map[string]WorkshopRecord

type ImportStats struct {
	Papers    int `json:"papers"`
	Workshops int `json:"workshops"`
	Skipped   int `json:"skipped"`
}

type BackfillStats struct {
	Papers    int `json:"papers"`
	Workshops int `json:"workshops"`
	Failed    int `json:"failed"`
}

type CoverageStats struct {
	Papers                   int64 `json:"papers"`
	PapersWithTitleEmbedding int64 `json:"papers_with_title_embedding"`
	PapersWithAbstractEmb    int64 `json:"papers_with_abstract_embedding"`
	Workshops                int64 `json:"workshops"`
	WorkshopsWithEmbedding   int64 `json:"workshops_with_embedding"`
}
