package middleware

import (
	"errors"
	"net/http"

	"github.com/jmylchreest/memmux/pkg/decompress"
)

// Decompress unwraps request bodies sent with a Content-Encoding and caps
// the decoded size at maxBytes (0 for no cap). Unknown encodings are
// rejected with 415.
func Decompress(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enc := r.Header.Get("Content-Encoding"); enc != "" && r.Body != nil {
				body, err := decompress.NewEncodingReader(r.Body, enc)
				if err != nil {
					status := http.StatusBadRequest
					if errors.Is(err, decompress.ErrUnsupportedEncoding) {
						status = http.StatusUnsupportedMediaType
					}
					http.Error(w, err.Error(), status)
					return
				}
				r.Body = body
				r.Header.Del("Content-Encoding")
				r.Header.Del("Content-Length")
				r.ContentLength = -1
			}
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
