package search

import (
	"sort"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
)

// Rank keeps the best image per product and returns the top k products by score.
// On equal scores the candidate seen first wins, and equal-scored products keep
// first-seen order.
func Rank(query []float32, candidates []product.Candidate, k int) []result.Match {
	if k <= 0 || len(candidates) == 0 {
		return []result.Match{}
	}

	best := make(map[int64]int, len(candidates)) // product id -> index in matches
	matches := make([]result.Match, 0)

	for _, c := range candidates {
		score := domain.Similarity(query, c.Vector)
		pid := c.Product.ID()

		i, seen := best[pid]
		if !seen {
			best[pid] = len(matches)
			matches = append(matches, result.New(c.Product, c.ImageID, c.ImagePath, score))
			continue
		}
		if score > matches[i].Score() {
			matches[i] = result.New(c.Product, c.ImageID, c.ImagePath, score)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score() > matches[b].Score()
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
