package middleware

import (
	"compress/gzip"
	"mime"
	"net/http"
	"strings"
	"sync"

	"mediadrop/internal/logging"
	"mediadrop/internal/streaming"
)

// CompressionConfig configures Compression.
type CompressionConfig struct {
	// MinSize is the smallest JSON body that gets compressed.
	MinSize int
}

// DefaultCompressionConfig compresses JSON documents of 1KB and up.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{MinSize: 1024}
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// jsonGzipWriter holds the body back until MinSize bytes arrived or the
// handler returned, then commits to gzip or plain output.
type jsonGzipWriter struct {
	http.ResponseWriter
	minSize   int
	status    int
	buf       []byte
	gz        *gzip.Writer
	committed bool
}

func (g *jsonGzipWriter) WriteHeader(code int) {
	if !g.committed {
		g.status = code
	}
}

func (g *jsonGzipWriter) Write(p []byte) (int, error) {
	if g.committed {
		if g.gz != nil {
			return g.gz.Write(p)
		}
		return g.ResponseWriter.Write(p)
	}

	g.buf = append(g.buf, p...)
	if len(g.buf) >= g.minSize {
		if err := g.commit(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (g *jsonGzipWriter) commit() error {
	g.committed = true

	if len(g.buf) >= g.minSize && isJSON(g.Header().Get("Content-Type")) {
		h := g.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		g.gz = gzipWriters.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)

	var err error
	if g.gz != nil {
		_, err = g.gz.Write(g.buf)
	} else if len(g.buf) > 0 {
		_, err = g.ResponseWriter.Write(g.buf)
	}
	g.buf = nil
	return err
}

func (g *jsonGzipWriter) close() error {
	if !g.committed {
		if err := g.commit(); err != nil {
			return err
		}
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	gzipWriters.Put(g.gz)
	g.gz = nil
	return err
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// Compression gzips JSON responses for clients that accept it. Upload event
// streams pass through untouched so each line reaches the client as sent.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if streaming.WantsEvents(r) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gw := &jsonGzipWriter{ResponseWriter: w, minSize: config.MinSize, status: http.StatusOK}
			defer func() {
				if err := gw.close(); err != nil {
					logging.Debug("Compressing %s: %v", r.URL.Path, err)
				}
			}()
			next.ServeHTTP(gw, r)
		})
	}
}
