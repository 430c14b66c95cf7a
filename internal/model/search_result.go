package model

type SearchResult struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
	Link     string   `json:"link"`
	Score    float64  `json:"score"`
	Kind     ItemKind `json:"kind"`
}
