package httpx

import (
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level  int // gzip level 1-9; out-of-range values fall back to the default
	Logger *slog.Logger
}

// compressibleTypes lists the media types worth gzipping. Everything the
// dashboard serves dynamically is text; images and fonts stay as-is.
var compressibleTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"text/plain":             true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
	"image/svg+xml":          true,
}

// Compression returns a middleware that gzips responses when the client
// accepts gzip and the content type is compressible. HEAD requests and
// responses that already carry a Content-Encoding pass through untouched.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.Level < gzip.BestSpeed || cfg.Level > gzip.BestCompression {
		cfg.Level = gzip.DefaultCompression
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pool := &sync.Pool{
		New: func() any {
			w, err := gzip.NewWriterLevel(io.Discard, cfg.Level)
			if err != nil {
				return gzip.NewWriter(io.Discard)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			gz, _ := pool.Get().(*gzip.Writer)
			gzw := &gzipResponseWriter{ResponseWriter: w, gz: gz}

			next.ServeHTTP(gzw, r)

			if gzw.compressing {
				if err := gz.Close(); err != nil {
					cfg.Logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
				}
			}
			gz.Reset(io.Discard)
			pool.Put(gz)
		})
	}
}

// acceptsGzip reports whether the Accept-Encoding header admits gzip,
// treating an explicit q=0 as a refusal.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		encoding, params, _ := strings.Cut(part, ";")
		if strings.TrimSpace(encoding) != "gzip" {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		if params == "q=0" || strings.HasPrefix(params, "q=0.0") || strings.HasPrefix(params, "q=0,") {
			return false
		}
		return true
	}
	return false
}

// gzipResponseWriter defers the compress-or-not decision to WriteHeader,
// once the handler has settled the status and content type.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz            *gzip.Writer
	headerWritten bool
	compressing   bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	if compressibleResponse(statusCode, w.Header()) {
		w.compressing = true
		w.gz.Reset(w.ResponseWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func compressibleResponse(statusCode int, h http.Header) bool {
	if statusCode < 200 || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		return false
	}
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType, _, _ := strings.Cut(h.Get("Content-Type"), ";")
	return compressibleTypes[strings.TrimSpace(strings.ToLower(mediaType))]
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.compressing {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush supports streamed fragments by flushing the gzip buffer before
// the underlying writer.
func (w *gzipResponseWriter) Flush() {
	if w.compressing {
		_ = w.gz.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
