package handler

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' https://accounts.google.com",
	"frame-src 'self' https://accounts.google.com",
	"img-src 'self' https://images.ctfassets.net data: https://developers.google.com",
	"object-src 'none'",
	"base-uri 'self'",
	"frame-ancestors 'self'",
}, "; ")

// SecurityHeaders sets the browser hardening headers. HSTS is only sent when
// the server terminates TLS itself.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// StaticFiles serves the frontend from dir for GET and HEAD requests that
// match no route. html, css and js get a ten minute public cache.
func StaticFiles(dir string) gin.HandlerFunc {
	fs := gin.Dir(dir, false)
	fileServer := http.FileServer(fs)

	return func(c *gin.Context) {
		method := c.Request.Method
		if dir == "" || (method != http.MethodGet && method != http.MethodHead) {
			abortJSON(c, http.StatusNotFound, "Not found")
			return
		}

		name := path.Clean("/" + c.Request.URL.Path)
		f, err := fs.Open(name)
		if err != nil {
			abortJSON(c, http.StatusNotFound, "Not found")
			return
		}
		_ = f.Close()

		switch path.Ext(name) {
		case ".html", ".css", ".js":
			c.Header("Cache-Control", "public, max-age=600")
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
