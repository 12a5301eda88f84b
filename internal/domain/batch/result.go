// Package batch describes per-entry outcomes of a bulk ingestion run.
package batch

// ItemStatus is the processing outcome of a single archive entry.
type ItemStatus string

// Entry status values.
const (
	StatusAdded   ItemStatus = "added"
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of processing one entry of an archive.
type Result struct {
	name      string
	status    ItemStatus
	productID int64
	reason    string
	err       error
}

// NewAdded creates a result for an image linked to a product.
func NewAdded(name string, productID int64, reason string) Result {
	return Result{name: name, status: StatusAdded, productID: productID, reason: reason}
}

// NewSkipped creates a result for an entry that was not an image.
func NewSkipped(name, reason string) Result {
	return Result{name: name, status: StatusSkipped, reason: reason}
}

// NewError creates a result for an entry that failed. productID is 0 when no product was resolved.
func NewError(name string, productID int64, err error) Result {
	return Result{name: name, status: StatusError, productID: productID, err: err}
}

// Name returns the recovered entry name.
func (r Result) Name() string { return r.name }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// ProductID returns the resolved product, 0 if none.
func (r Result) ProductID() int64 { return r.productID }

// Reason returns a human-readable note (skip reason or parse ambiguity).
func (r Result) Reason() string {
	if r.err != nil {
		return r.err.Error()
	}
	return r.reason
}

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
