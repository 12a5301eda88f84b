// Package imageproc normalizes uploaded photos before they are stored or embedded.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// Defaults for stored photos.
const (
	DefaultMaxWidth    = 800
	DefaultJPEGQuality = 85
)

// Options controls resizing and encoding.
type Options struct {
	MaxWidth    int
	JPEGQuality int
}

// DefaultOptions returns the stored-photo defaults.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, JPEGQuality: DefaultJPEGQuality}
}

// Result is an encoded image ready for storage.
type Result struct {
	Data   []byte
	Ext    string // with leading dot, lower case
	Width  int
	Height int
}

// Decode reads any supported format (png, jpeg, gif, bmp, tiff, webp).
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return img, nil
}

// ToRGB drops the alpha channel, keeping the colour channels as stored.
func ToRGB(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Process decodes data, converts it to RGB, shrinks it to opts.MaxWidth keeping
// the aspect ratio and re-encodes it in the format implied by name.
// Formats without an encoder (WebP) become JPEG and Ext reports ".jpg".
func Process(data []byte, name string, opts Options) (Result, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	src, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	var img image.Image = ToRGB(src)
	if b := img.Bounds(); b.Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	format, ext := outputFormat(name)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", ext, err)
	}

	b := img.Bounds()
	return Result{Data: buf.Bytes(), Ext: ext, Width: b.Dx(), Height: b.Dy()}, nil
}

// ReplaceExt swaps the extension of name for ext.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

func outputFormat(name string) (imaging.Format, string) {
	ext := strings.ToLower(path.Ext(name))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil || format == imaging.GIF || format == imaging.TIFF {
		return imaging.JPEG, ".jpg"
	}
	return format, ext
}
