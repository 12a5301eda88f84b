// Package ingest holds the pure parsing rules of bulk ingestion: which archive
// entries are images and how a folder name encodes product identity.
package ingest

import (
	"path"
	"strings"

	"github.com/shopspring/decimal"
)

// MacOSMetadataPrefix marks resource-fork entries added by macOS archivers.
const MacOSMetadataPrefix = "__MACOSX"

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".webp": {},
}

// IsImage reports whether the entry name has a recognized image extension (case-insensitive).
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// IsMetadata reports whether the entry is a directory or OS metadata.
func IsMetadata(name string) bool {
	return strings.HasPrefix(name, MacOSMetadataPrefix) || strings.HasSuffix(name, "/")
}

// Key is the product identity parsed from a grouping key.
type Key struct {
	model       string
	productName string
	price       float64
	ambiguous   bool
}

// Model returns the model name (the dedup key).
func (k Key) Model() string { return k.model }

// ProductName returns the parsed product name, empty if absent.
func (k Key) ProductName() string { return k.productName }

// Price returns the parsed price; 0 means unset.
func (k Key) Price() float64 { return k.price }

// Ambiguous reports whether a numeric segment was taken as the price.
// A product name that is itself a number is indistinguishable from a price.
func (k Key) Ambiguous() bool { return k.ambiguous }

// ParseGroupingKey splits a folder name on "_" into model, optional name and optional price.
//
//	CS001                    -> model CS001
//	CS001_Necklace           -> model CS001, name Necklace
//	CS001_199                -> model CS001, price 199
//	CS001_Pearl_Necklace_199 -> model CS001, name Pearl_Necklace, price 199
func ParseGroupingKey(folder string) Key {
	parts := strings.Split(folder, "_")
	k := Key{model: strings.TrimSpace(parts[0])}

	switch {
	case len(parts) >= 3:
		if price, ok := parsePrice(parts[len(parts)-1]); ok {
			k.price = price
			k.productName = strings.Join(parts[1:len(parts)-1], "_")
			k.ambiguous = true
		} else {
			k.productName = strings.Join(parts[1:], "_")
		}
	case len(parts) == 2:
		if price, ok := parsePrice(parts[1]); ok {
			k.price = price
			k.ambiguous = true
		} else {
			k.productName = parts[1]
		}
	}

	k.productName = strings.TrimSpace(k.productName)
	return k
}

// parsePrice accepts finite non-negative decimals.
func parsePrice(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// Entry is an archive image entry decomposed into grouping key and leaf file name.
type Entry struct {
	key  Key
	leaf string
}

// Key returns the parsed product identity.
func (e Entry) Key() Key { return e.key }

// Leaf returns the file name inside its folder.
func (e Entry) Leaf() string { return e.leaf }

// ParseEntryPath decomposes a recovered entry name. With two or more segments the
// second-to-last one is the grouping key; a flat entry uses its file stem as the
// model and skips suffix parsing.
func ParseEntryPath(name string) Entry {
	segments := strings.Split(name, "/")
	leaf := segments[len(segments)-1]

	if len(segments) >= 2 {
		return Entry{key: ParseGroupingKey(segments[len(segments)-2]), leaf: leaf}
	}

	stem := strings.TrimSuffix(leaf, path.Ext(leaf))
	return Entry{key: Key{model: strings.TrimSpace(stem)}, leaf: leaf}
}
