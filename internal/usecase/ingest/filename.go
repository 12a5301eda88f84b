package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Encodings tried for entry names stored without the UTF-8 flag, in priority order.
var nameEncodings = []encoding.Encoding{
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
}

// RecoverName returns a readable UTF-8 rendering of a raw archive entry name.
// Valid UTF-8 wins, then GBK, then Big5. If none decodes cleanly the raw bytes
// are read as CP437, which maps every byte and never fails.
func RecoverName(raw string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	for _, enc := range nameEncodings {
		if name, ok := decodeStrict(enc, raw); ok {
			return name
		}
	}
	name, err := charmap.CodePage437.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return name
}

// decodeStrict rejects decodings that produced replacement characters.
func decodeStrict(enc encoding.Encoding, raw string) (string, bool) {
	name, err := enc.NewDecoder().String(raw)
	if err != nil || strings.ContainsRune(name, utf8.RuneError) {
		return "", false
	}
	return name, true
}
