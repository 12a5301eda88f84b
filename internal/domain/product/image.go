package product

// OrderUnspecified asks the store to append the image after the current maximum order.
const OrderUnspecified = 0

// Image is a stored product photo.
type Image struct {
	id           int64
	productID    int64
	path         string
	vector       []float32
	displayOrder int
}

// ReconstructImage creates an Image from storage.
func ReconstructImage(id, productID int64, path string, vector []float32, displayOrder int) Image {
	return Image{id: id, productID: productID, path: path, vector: vector, displayOrder: displayOrder}
}

// ID returns the image identifier.
func (i *Image) ID() int64 { return i.id }

// ProductID returns the owning product.
func (i *Image) ProductID() int64 { return i.productID }

// Path returns the location in the file store.
func (i *Image) Path() string { return i.path }

// Vector returns the normalized feature vector, nil if extraction was skipped.
func (i *Image) Vector() []float32 { return i.vector }

// DisplayOrder returns the presentation order.
func (i *Image) DisplayOrder() int { return i.displayOrder }

// OrderUpdate assigns a display order to one image.
type OrderUpdate struct {
	ImageID int64
	Order   int
}

// Candidate is one stored image vector joined with its product summary.
type Candidate struct {
	Product   Product
	ImageID   int64
	ImagePath string
	Vector    []float32
}
