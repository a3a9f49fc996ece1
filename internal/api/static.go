package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// SetupContentRoute serves the knowledge-base document the widget sends as context.
// The file is read per request so edits are picked up without a restart.
func SetupContentRoute(r gin.IRoutes, route, path string) {
	if route == "" || path == "" {
		return
	}

	r.GET(route, func(c *gin.Context) {
		content, err := os.ReadFile(path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge base not found"})
			return
		}

		contentType := "text/plain; charset=utf-8"
		if strings.EqualFold(filepath.Ext(path), ".json") {
			contentType = "application/json"
		}

		c.Header("Cache-Control", "public, max-age=300")
		c.Data(http.StatusOK, contentType, content)
	})
}
