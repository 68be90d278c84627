// internal/dataset/html.go
package dataset

import (
	"golang.org/x/net/html/charset"
)

// DecodeHTML sniffs a recorded page's encoding and decodes it to UTF-8,
// returning the text and the detected charset name. Recordings are mostly
// UTF-8, but some captured sites declare legacy charsets. On a failed decode
// the raw bytes come back as-is along with the error.
func DecodeHTML(raw []byte) (string, string, error) {
	enc, name, _ := charset.DetermineEncoding(raw, "")
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), name, err
	}
	return string(decoded), name, nil
}
