package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mybank-ledger/internal/api_gateway/handler"
	"github.com/mybank-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transferHandler *handler.TransferHandler,
	tokenHandler *handler.TokenHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/accounts", accountHandler.Open)

		// Caller's own account; identity is asserted upstream
		me := v1.Group("/me", middleware.AccountIdentity())
		{
			me.GET("", accountHandler.Dashboard)
			me.PUT("/pin", accountHandler.SetPIN)
			me.GET("/transactions", accountHandler.Transactions)
			me.GET("/statement", accountHandler.Statement)
			me.POST("/archive", accountHandler.Archive)

			me.POST("/transfers", transferHandler.Create)

			me.POST("/tokens/withdraw", tokenHandler.IssueWithdraw)
			me.POST("/tokens/deposit/claim", tokenHandler.ClaimDeposit)
			me.GET("/tokens/:code", tokenHandler.Status)
		}

		// Cash machine operations; the machine is asserted upstream
		atm := v1.Group("/atm", middleware.ATMIdentity())
		{
			atm.POST("/deposits", tokenHandler.IssueDeposit)
			atm.POST("/withdrawals", tokenHandler.RedeemWithdraw)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
