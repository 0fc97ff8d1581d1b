package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/theleywin/talentnest-graph/src/delivery"
)

// NewRouter builds the HTTP host of the push gateway
func NewRouter(ctl *SocketController, hub *delivery.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", ctl.Handle())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "channels": hub.Count()})
	})
	return r
}
