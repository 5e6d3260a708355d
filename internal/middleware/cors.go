package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS lets the public site and the admin dashboard call the API from the browser.
// allowedOrigins is "*" or a comma-separated list of origins.
func CORS(allowedOrigins string) gin.HandlerFunc {
	allow := originMatcher(allowedOrigins)
	return func(c *gin.Context) {
		if origin := allow(c.GetHeader("Origin")); origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			// The CSV export filename travels in Content-Disposition.
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// originMatcher returns the value to echo in Access-Control-Allow-Origin, or "" to send none.
func originMatcher(allowedOrigins string) func(origin string) string {
	set := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			set[o] = true
		}
	}
	if len(set) == 0 || set["*"] {
		return func(string) string { return "*" }
	}
	return func(origin string) string {
		if set[origin] {
			return origin
		}
		return ""
	}
}
