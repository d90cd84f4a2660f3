package grf

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// decodeName converts a file table name to UTF-8. Names are stored in
// EUC-KR; plain ASCII passes through unchanged. Bytes that do not decode
// are kept as-is.
func decodeName(raw []byte) string {
	if isASCII(raw) {
		return string(raw)
	}
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err != nil || !utf8.Valid(out) {
		return string(raw)
	}
	return string(out)
}

// encodeName converts a UTF-8 name to EUC-KR for writing file tables.
func encodeName(name string) ([]byte, error) {
	if isASCII([]byte(name)) {
		return []byte(name), nil
	}
	out, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(name))
	return out, err
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
