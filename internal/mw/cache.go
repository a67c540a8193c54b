package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

// captureWriter tees the response body so it can be cached after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves successful GET responses from memory for the given
// duration, keyed by request URI. Mutating verbs pass through untouched.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if hit, found := store.Get(key); found {
			cached := hit.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		cw := &captureWriter{ResponseWriter: c.Writer, buf: bytes.NewBuffer(nil)}
		c.Writer = cw
		c.Next()

		if cw.Status() >= 200 && cw.Status() < 300 {
			store.Set(key, cachedResponse{
				status:  cw.Status(),
				headers: cw.Header().Clone(),
				body:    cw.buf.Bytes(),
			}, duration)
		}
	}
}
