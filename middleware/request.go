package middleware

import (
	"net/http"
	"time"

	"PLedger/logger"
	"PLedger/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
)

// RequestID tags each request with the caller's id or a fresh uuid.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string { return c.GetString(ctxRequestID) }

func AccessLog(log *zap.Logger) gin.HandlerFunc {
	log = logger.OrDefault(log).Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", GetRequestID(c)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

// Recovery turns a handler panic into a 500 with the REST error body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	log = logger.OrDefault(log).Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				log.Error("handler panic", zap.String("path", c.Request.URL.Path), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message":    err.Error(),
					"error_code": "internal_error",
				})
			}
		}()
		c.Next()
	}
}
