package result

import (
	"testing"
	"time"

	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

func TestNew(t *testing.T) {
	p := product.Reconstruct(3, "CS001", "Pearl", 199, "2024-01-01", time.Time{}, nil)

	m := New(p, 11, "uploads/a.jpg", 0.93).WithImages([]string{"uploads/a.jpg", "uploads/b.jpg"})

	if m.ProductID() != 3 {
		t.Errorf("ProductID() = %d", m.ProductID())
	}
	if m.BestImageID() != 11 {
		t.Errorf("BestImageID() = %d", m.BestImageID())
	}
	if m.BestImagePath() != "uploads/a.jpg" {
		t.Errorf("BestImagePath() = %q", m.BestImagePath())
	}
	if m.Score() != 0.93 {
		t.Errorf("Score() = %f", m.Score())
	}
	if len(m.Images()) != 2 {
		t.Errorf("Images() len = %d", len(m.Images()))
	}
	if p := m.Product(); p.ModelName() != "CS001" {
		t.Errorf("Product().ModelName() = %q", p.ModelName())
	}
}
