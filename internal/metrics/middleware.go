package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder defines methods needed by the middleware
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int)
	RecordHTTPDuration(method, route string, duration float64)
}

// Middleware creates a Gin middleware that collects HTTP metrics.
// Requests are labelled by route template so path parameters do not
// create a series per pair.
func Middleware(recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		recorder.RecordHTTPRequest(method, route, c.Writer.Status())
		recorder.RecordHTTPDuration(method, route, time.Since(start).Seconds())
	}
}
