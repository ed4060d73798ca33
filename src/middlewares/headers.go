package middlewares

import "github.com/gin-gonic/gin"

func SecureHeaders(ctx *gin.Context) {
	h := ctx.Writer.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	ctx.Next()
}

// Maintenance answers every request with 503 while enabled returns true.
func Maintenance(enabled func() bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if enabled() {
			ctx.AbortWithStatusJSON(503, gin.H{"error": "server is under maintenance"})
			return
		}
		ctx.Next()
	}
}
