package ebay

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// DecodeBody unwraps a compressed response body based on Content-Encoding.
func DecodeBody(encoding string, body io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return reader, nil
	case "br":
		return brotli.NewReader(body), nil
	default:
		return body, nil
	}
}
