package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PIYUSH-GIRI23/zipp-clip/service"
)

// SetupRouter sets up the gin router: public session endpoints under
// /auth, gated endpoints under /api.
func SetupRouter(sessions *service.SessionService) *gin.Engine {
	router := gin.Default()

	handlers := NewSessionHandlers(sessions)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/session", handlers.Issue)
		auth.POST("/renew", handlers.Renew)
		auth.POST("/renew-refresh", handlers.RenewRefresh)
	}

	api := router.Group("/api")
	api.Use(RequestGate(sessions))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
