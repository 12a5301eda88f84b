package ingest

import (
	"strings"
	"unicode"
)

// fallbackName replaces a save name that sanitizes to nothing.
const fallbackName = "image"

// SaveName builds the stored file name for an ingested image.
func SaveName(model, leaf string) string {
	return Sanitize(model + "_" + leaf)
}

// Sanitize keeps letters and digits of any script plus "._-".
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.Trim(out, "._-") == "" {
		return fallbackName + out
	}
	return out
}
