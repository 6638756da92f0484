package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// 路由选项
type RouteOpt struct {
	// Timeout bounds the request context handed to the handler; 0 means none.
	Timeout time.Duration
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.Timeout <= 0 {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{withTimeout(opt.Timeout), handler}
}

func withTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
