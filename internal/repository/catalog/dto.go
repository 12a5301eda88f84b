package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// timeLayout is fixed-width so that text ordering on created_at matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const productColumns = `p.id, p.model_name, p.product_name, p.price, p.maintenance_time, p.created_at`

const imageColumns = `i.id, i.product_id, i.image_path, i.feature_vector, i.display_order`

type rowScanner interface {
	Scan(dest ...any) error
}

// productRow mirrors a products row.
type productRow struct {
	id              int64
	modelName       string
	productName     string
	price           float64
	maintenanceTime string
	createdAt       string
}

func scanProduct(s rowScanner) (productRow, error) {
	var r productRow
	err := s.Scan(&r.id, &r.modelName, &r.productName, &r.price, &r.maintenanceTime, &r.createdAt)
	return r, err
}

func (r productRow) toDomain(images []product.Image) product.Product {
	createdAt, err := time.Parse(timeLayout, r.createdAt)
	if err != nil {
		// rows written by other tools may use plain RFC 3339
		createdAt, _ = time.Parse(time.RFC3339, r.createdAt)
	}
	return product.Reconstruct(r.id, r.modelName, r.productName, r.price, r.maintenanceTime, createdAt, images)
}

// imageRow mirrors a product_images row.
type imageRow struct {
	id           int64
	productID    int64
	path         string
	vector       []byte
	displayOrder int
}

func scanImage(s rowScanner) (imageRow, error) {
	var r imageRow
	err := s.Scan(&r.id, &r.productID, &r.path, &r.vector, &r.displayOrder)
	return r, err
}

func (r imageRow) toDomain() (product.Image, error) {
	var vec []float32
	if r.vector != nil {
		v, err := domain.DecodeVector(r.vector)
		if err != nil {
			return product.Image{}, fmt.Errorf("image %d: %w", r.id, err)
		}
		vec = v
	}
	return product.ReconstructImage(r.id, r.productID, r.path, vec, r.displayOrder), nil
}

func encodeNullableVector(v []float32) any {
	if v == nil {
		return nil
	}
	return domain.EncodeVector(v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// likePattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func closeRows(rows *sql.Rows) {
	_ = rows.Close()
}
