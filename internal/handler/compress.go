package handler

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// compressWriter picks the encoding when the status is known, so bodiless
// responses are sent without Content-Encoding.
type compressWriter struct {
	http.ResponseWriter
	r           *http.Request
	cw          io.WriteCloser
	wroteHeader bool
}

func (c *compressWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	if bodyAllowed(c.r.Method, status) && c.Header().Get("Content-Encoding") == "" {
		c.cw = brotli.HTTPCompressor(c.ResponseWriter, c.r)
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *compressWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.cw == nil {
		return c.ResponseWriter.Write(p)
	}
	return c.cw.Write(p)
}

func (c *compressWriter) Close() error {
	if c.cw == nil {
		return nil
	}
	return c.cw.Close()
}

func bodyAllowed(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

// Compress encodes responses with brotli or gzip, whichever the client
// prefers in Accept-Encoding.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, r: r}
		defer cw.Close()

		next.ServeHTTP(cw, r)
	})
}
