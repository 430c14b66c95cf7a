package retrieval

import (
	"sort"

	"github.com/xxxsen/papersearch/internal/model"
)

func scoreFromDistance(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func kindRank(kind model.ItemKind) int {
	if kind == model.ItemKindWorkshop {
		return 0
	}
	return 1
}

// rankResults orders workshops before papers and each kind by descending
// score. Equal scores keep their accumulation order.
func rankResults(results []model.SearchResult, limit int) []model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		ki, kj := kindRank(results[i].Kind), kindRank(results[j].Kind)
		if ki != kj {
			return ki < kj
		}
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
