package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/ports"
	"github.com/layer-3/keygate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(broker *service.Broker, delegates *service.DelegateRegistry, directory ports.UserDirectory) *gin.Engine {
	router := gin.Default()

	handlers := NewWalletHandlers(broker, delegates)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Everything below acts on behalf of an authenticated application user
	api := router.Group("/api")
	api.Use(AuthMiddleware(directory))
	{
		api.GET("/wallets", handlers.ListWallets)
		api.GET("/wallet-session", handlers.Status)

		wallet := api.Group("/wallets/:id")
		wallet.POST("/unlock", handlers.Unlock)
		wallet.POST("/auto-unlock", handlers.AutoUnlock)
		wallet.POST("/lock", handlers.Lock)
		wallet.POST("/heartbeat", handlers.Heartbeat)
		wallet.POST("/promote", handlers.Promote)

		wallet.GET("/sessions", handlers.ListSessions)
		wallet.DELETE("/sessions", handlers.RevokeAllSessions)
		wallet.DELETE("/sessions/:jti", handlers.RevokeSession)

		wallet.GET("/auto-unlock/delegates", handlers.ListDelegates)
		wallet.POST("/auto-unlock/delegates", handlers.RegisterDelegate)
		wallet.DELETE("/auto-unlock/delegates/:delegateId", handlers.RevokeDelegate)
	}

	return router
}
