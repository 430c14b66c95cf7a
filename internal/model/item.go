package model

type ItemKind string

const (
	ItemKindPaper    ItemKind = "paper"
	ItemKindWorkshop ItemKind = "workshop"
)

// Item is the read-only view the retrieval engine needs from a stored
// paper or workshop.
type Item interface {
	Kind() ItemKind
	GetTitle() string
	GetAbstract() string
	GetLink() string
	GetAuthors() []string
	Embeddings() [][]float32
}

// Candidate is one nearest-neighbor hit returned by the item store.
type Candidate struct {
	Item     Item
	Distance float64
}
