package middleware

import (
	"time"

	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		kv := []interface{}{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if id, ok := c.Get("request_id"); ok {
			kv = append(kv, "request_id", id)
		}

		if c.Writer.Status() >= 500 {
			log.Error("HTTP request", kv...)
			return
		}
		log.Info("HTTP request", kv...)
	}
}
