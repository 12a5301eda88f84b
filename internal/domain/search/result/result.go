// Package result holds ranked recognition matches.
package result

import "github.com/kailas-cloud/photomatch/internal/domain/product"

// Match is one ranked product for a query image.
type Match struct {
	product       product.Product
	bestImageID   int64
	bestImagePath string
	images        []string
	score         float64
}

// New creates a match. images is the product's full ordered gallery.
func New(p product.Product, bestImageID int64, bestImagePath string, score float64) Match {
	return Match{product: p, bestImageID: bestImageID, bestImagePath: bestImagePath, score: score}
}

// WithImages returns a copy carrying the product gallery.
func (m Match) WithImages(images []string) Match {
	m.images = images
	return m
}

// ProductID returns the matched product identifier.
func (m *Match) ProductID() int64 { return m.product.ID() }

// Product returns the matched product summary.
func (m *Match) Product() product.Product { return m.product }

// BestImageID returns the image that produced the best score.
func (m *Match) BestImageID() int64 { return m.bestImageID }

// BestImagePath returns the path of the best-matching image.
func (m *Match) BestImagePath() string { return m.bestImagePath }

// Images returns all image paths of the product in display order.
func (m *Match) Images() []string { return m.images }

// Score returns the cosine similarity of the best image.
func (m *Match) Score() float64 { return m.score }
