package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/photomatch/internal/db/sqlite"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// newTestRepo opens a migrated database in a temp dir with a monotonic clock.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	conn, err := sqlite.Open(context.Background(), sqlite.Config{
		Path:        filepath.Join(t.TempDir(), "catalog.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	return New(conn, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
}

func mustCreate(t *testing.T, r *Repo, model, name string, price float64) int64 {
	t.Helper()
	p, err := product.New(model, name, price, "")
	if err != nil {
		t.Fatalf("product.New: %v", err)
	}
	id, err := r.CreateProduct(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return id
}

func mustAddImage(t *testing.T, r *Repo, productID int64, path string, vec []float32) int64 {
	t.Helper()
	id, err := r.AddImage(context.Background(), productID, path, vec, product.OrderUnspecified)
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	return id
}

var zeroTime time.Time
