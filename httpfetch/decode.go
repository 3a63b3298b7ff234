package httpfetch

import (
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// DecodeBody wraps resp.Body according to its Content-Encoding header
// ("gzip" or "deflate"); any other value, including the empty string,
// returns the body unchanged. Callers are responsible for closing the
// returned reader if it differs from resp.Body.
func DecodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "deflate":
		r, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return resp.Body, nil
	}
}
