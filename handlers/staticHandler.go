package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// StaticFallback は未定義のパスを処理する。WebSocketのアップグレード要求は ingress に渡し、
// それ以外は静的ファイル、見つからなければ index.html を返す
func StaticFallback(c *gin.Context, staticDir string, ingress http.Handler) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		ingress.ServeHTTP(c.Writer, c.Request)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	// ルートより上には出られない
	rel := path.Clean("/" + c.Request.URL.Path)
	file := filepath.Join(staticDir, filepath.FromSlash(rel))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	c.File(filepath.Join(staticDir, "index.html"))
}
