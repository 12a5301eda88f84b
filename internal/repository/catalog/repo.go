// Package catalog stores products and their images in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/kailas-cloud/photomatch/internal/db"
	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// conn is the consumer interface over *sql.DB (ISP).
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
}

// Repo is the catalog store. Every operation runs under one mutex because the
// backing engine serves a single shared connection.
type Repo struct {
	mu   sync.Mutex
	conn conn
	now  func() time.Time
}

// Option configures Repo.
type Option func(*Repo)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// New creates a catalog repository.
func New(c conn, opts ...Option) *Repo {
	r := &Repo{conn: c, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.conn.PingContext(ctx); err != nil {
		return &db.Error{Op: "PING", Err: err}
	}
	return nil
}

// CreateProduct inserts a product and returns its id.
func (r *Repo) CreateProduct(ctx context.Context, p product.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.conn.ExecContext(ctx,
		`INSERT INTO products (model_name, product_name, price, maintenance_time, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ModelName(), p.ProductName(), p.Price(), p.MaintenanceTime(), formatTime(r.now()))
	if err != nil {
		return 0, mapErr("insert product", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr("insert product", err)
	}
	return id, nil
}

// FindProductByModel returns the first product with exactly this model name.
func (r *Repo) FindProductByModel(ctx context.Context, modelName string) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.conn.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.model_name = ? ORDER BY p.id LIMIT 1`, modelName)
	pr, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Product{}, fmt.Errorf("model %q: %w", modelName, domain.ErrNotFound)
		}
		return product.Product{}, mapErr("find product by model", err)
	}
	return pr.toDomain(nil), nil
}

// GetProduct returns a product with its images in display order.
func (r *Repo) GetProduct(ctx context.Context, id int64) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ?`, id)
	pr, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Product{}, domain.NewNotFound(domain.KindProduct, id)
		}
		return product.Product{}, mapErr("get product", err)
	}

	images, err := r.imagesFor(ctx, []int64{id})
	if err != nil {
		return product.Product{}, err
	}
	return pr.toDomain(images[id]), nil
}

// UpdateProduct overwrites the mutable fields of p. A missing id is a no-op.
func (r *Repo) UpdateProduct(ctx context.Context, p product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.conn.ExecContext(ctx,
		`UPDATE products SET model_name = ?, product_name = ?, price = ?, maintenance_time = ? WHERE id = ?`,
		p.ModelName(), p.ProductName(), p.Price(), p.MaintenanceTime(), p.ID())
	if err != nil {
		return mapErr("update product", err)
	}
	return nil
}

// AddImage appends an image to a product. With product.OrderUnspecified the image
// goes after the current maximum display order (0 for the first image).
func (r *Repo) AddImage(ctx context.Context, productID int64, path string, vector []float32, order int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapErr("begin add image", err)
	}
	defer func() { _ = tx.Rollback() }()

	if order == product.OrderUnspecified {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(display_order) + 1, 0) FROM product_images WHERE product_id = ?`, productID).Scan(&next)
		if err != nil {
			return 0, mapErr("next display order", err)
		}
		order = next
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO product_images (product_id, image_path, feature_vector, display_order) VALUES (?, ?, ?, ?)`,
		productID, path, encodeNullableVector(vector), order)
	if err != nil {
		return 0, mapErr("insert image", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr("insert image", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, mapErr("commit add image", err)
	}
	return id, nil
}

// ReorderImages sets display orders in one transaction. An unknown image id
// rolls back every update of the call.
func (r *Repo) ReorderImages(ctx context.Context, updates []product.OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("begin reorder", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE product_images SET display_order = ? WHERE id = ?`)
	if err != nil {
		return mapErr("prepare reorder", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Order, u.ImageID)
		if err != nil {
			return mapErr("reorder image", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mapErr("reorder image", err)
		}
		if n == 0 {
			return domain.NewNotFound(domain.KindImage, u.ImageID)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapErr("commit reorder", err)
	}
	return nil
}

// ListProducts returns a page of products, newest first, with nested images.
// search matches a substring of model or product name, case-insensitively.
func (r *Repo) ListProducts(ctx context.Context, limit, offset int, search string) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	where, args := searchClause(search)
	args = append(args, limit, offset)

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p`+where+
			` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, mapErr("list products", err)
	}
	defer closeRows(rows)

	var page []productRow
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, mapErr("scan product", err)
		}
		page = append(page, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list products", err)
	}
	closeRows(rows)

	ids := make([]int64, len(page))
	for i, pr := range page {
		ids[i] = pr.id
	}
	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]product.Product, len(page))
	for i, pr := range page {
		out[i] = pr.toDomain(images[pr.id])
	}
	return out, nil
}

// CountProducts returns the number of products matching search.
func (r *Repo) CountProducts(ctx context.Context, search string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	where, args := searchClause(search)
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&n); err != nil {
		return 0, mapErr("count products", err)
	}
	return n, nil
}

// DeleteProduct removes a product and its image rows in one transaction and
// returns the paths those rows pointed to.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr("begin delete product", err)
	}
	defer func() { _ = tx.Rollback() }()

	paths, err := queryPaths(ctx, tx, []int64{id})
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr("delete product", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, mapErr("delete product", err)
	}
	if n == 0 {
		return nil, domain.NewNotFound(domain.KindProduct, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr("commit delete product", err)
	}
	return paths, nil
}

// DeleteProducts removes several products in one transaction and returns the
// image paths of the removed rows. Unknown ids are ignored.
func (r *Repo) DeleteProducts(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr("begin delete products", err)
	}
	defer func() { _ = tx.Rollback() }()

	paths, err := queryPaths(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM products WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...); err != nil {
		return nil, mapErr("delete products", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr("commit delete products", err)
	}
	return paths, nil
}

// DeleteImage removes one image row and reports the path it pointed to.
func (r *Repo) DeleteImage(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", mapErr("begin delete image", err)
	}
	defer func() { _ = tx.Rollback() }()

	var path string
	if err := tx.QueryRowContext(ctx, `SELECT image_path FROM product_images WHERE id = ?`, id).Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewNotFound(domain.KindImage, id)
		}
		return "", mapErr("select image", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE id = ?`, id); err != nil {
		return "", mapErr("delete image", err)
	}
	if err := tx.Commit(); err != nil {
		return "", mapErr("commit delete image", err)
	}
	return path, nil
}

// GetImage returns one image by id.
func (r *Repo) GetImage(ctx context.Context, id int64) (product.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.conn.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM product_images i WHERE i.id = ?`, id)
	ir, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Image{}, domain.NewNotFound(domain.KindImage, id)
		}
		return product.Image{}, mapErr("get image", err)
	}
	return ir.toDomain()
}

// ImagePaths returns the ordered image paths of one product.
func (r *Repo) ImagePaths(ctx context.Context, productID int64) ([]string, error) {
	return r.ImagePathsFor(ctx, []int64{productID})
}

// ImagePathsFor returns the image paths of several products, ordered per product.
func (r *Repo) ImagePathsFor(ctx context.Context, productIDs []int64) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return queryPaths(ctx, r.conn, productIDs)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPaths(ctx context.Context, q querier, productIDs []int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT image_path FROM product_images WHERE product_id IN (`+placeholders(len(productIDs))+`)
		 ORDER BY product_id, display_order, id`, int64Args(productIDs)...)
	if err != nil {
		return nil, mapErr("image paths", err)
	}
	defer closeRows(rows)

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, mapErr("scan image path", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("image paths", err)
	}
	return paths, nil
}

// AllVectors returns every image that has a vector, with its product summary,
// ordered by product id, display order, image id.
func (r *Repo) AllVectors(ctx context.Context) ([]product.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+productColumns+`, i.id, i.image_path, i.feature_vector
		 FROM product_images i JOIN products p ON p.id = i.product_id
		 WHERE i.feature_vector IS NOT NULL
		 ORDER BY p.id, i.display_order, i.id`)
	if err != nil {
		return nil, mapErr("all vectors", err)
	}
	defer closeRows(rows)

	var out []product.Candidate
	for rows.Next() {
		var (
			pr      productRow
			imageID int64
			path    string
			blob    []byte
		)
		if err := rows.Scan(&pr.id, &pr.modelName, &pr.productName, &pr.price, &pr.maintenanceTime, &pr.createdAt,
			&imageID, &path, &blob); err != nil {
			return nil, mapErr("scan vector", err)
		}
		vec, err := domain.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", imageID, err)
		}
		out = append(out, product.Candidate{
			Product:   pr.toDomain(nil),
			ImageID:   imageID,
			ImagePath: path,
			Vector:    vec,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("all vectors", err)
	}
	return out, nil
}

// ListImages returns every stored image ordered by id.
func (r *Repo) ListImages(ctx context.Context) ([]product.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.conn.QueryContext(ctx, `SELECT `+imageColumns+` FROM product_images i ORDER BY i.id`)
	if err != nil {
		return nil, mapErr("list images", err)
	}
	defer closeRows(rows)

	var out []product.Image
	for rows.Next() {
		ir, err := scanImage(rows)
		if err != nil {
			return nil, mapErr("scan image", err)
		}
		img, err := ir.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list images", err)
	}
	return out, nil
}

// SetImageVector replaces the stored vector of an image.
func (r *Repo) SetImageVector(ctx context.Context, imageID int64, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.conn.ExecContext(ctx,
		`UPDATE product_images SET feature_vector = ? WHERE id = ?`, encodeNullableVector(vector), imageID)
	if err != nil {
		return mapErr("set image vector", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr("set image vector", err)
	}
	if n == 0 {
		return domain.NewNotFound(domain.KindImage, imageID)
	}
	return nil
}

// imagesFor loads images of the given products grouped by product id. Caller holds mu.
func (r *Repo) imagesFor(ctx context.Context, productIDs []int64) (map[int64][]product.Image, error) {
	out := make(map[int64][]product.Image, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM product_images i WHERE i.product_id IN (`+placeholders(len(productIDs))+`)
		 ORDER BY i.product_id, i.display_order, i.id`, int64Args(productIDs)...)
	if err != nil {
		return nil, mapErr("list images", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		ir, err := scanImage(rows)
		if err != nil {
			return nil, mapErr("scan image", err)
		}
		img, err := ir.toDomain()
		if err != nil {
			return nil, err
		}
		out[ir.productID] = append(out[ir.productID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list images", err)
	}
	return out, nil
}

func searchClause(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	pattern := likePattern(search)
	return ` WHERE LOWER(p.model_name) LIKE ? ESCAPE '\' OR LOWER(p.product_name) LIKE ? ESCAPE '\'`,
		[]any{pattern, pattern}
}

// mapErr translates driver errors. Constraint violations become ErrIntegrityConflict.
func mapErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrIntegrityConflict, se.Error())
	}
	return &db.Error{Op: op, Err: err}
}
