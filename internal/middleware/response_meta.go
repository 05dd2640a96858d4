package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_started_at"
)

// WithResponseMeta starts the per-request metadata map and clock read by ResponseMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether a public read was served from the listing cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// SetMeta stores a response metadata value, e.g. whether a moderation call changed anything.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta, ok := c.Get(responseMetaKey)
	typed, _ := meta.(map[string]interface{})
	if !ok || typed == nil {
		typed = map[string]interface{}{}
		c.Set(responseMetaKey, typed)
	}
	typed[key] = value
}

// ResponseMeta returns a copy of the collected metadata, stamped with the time spent so far
// when WithResponseMeta ran. It returns nil when nothing was collected.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	out := map[string]interface{}{}
	if meta, ok := c.Get(responseMetaKey); ok {
		if typed, ok := meta.(map[string]interface{}); ok {
			for k, v := range typed {
				out[k] = v
			}
		}
	}
	if started, ok := c.Get(requestStartKey); ok {
		if at, ok := started.(time.Time); ok {
			out["processing_time_ms"] = time.Since(at).Milliseconds()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
