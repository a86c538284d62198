// Package api exposes billbox over HTTP with gin.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/buildinfo"
)

// UserHeader selects the user a request acts for. Without it the configured
// default user is used.
const UserHeader = "X-User-ID"

const userIDKey = "userID"

// NewRouter builds the gin engine with every route registered.
func NewRouter(a *app.App, log zerolog.Logger) *gin.Engine {
	h := NewBillHandler(a, log)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), corsMiddleware(a.Config().Server.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "billbox",
			"version": buildinfo.Version,
		})
	})

	api := router.Group("/api/v1", userMiddleware(a.DefaultUser()))
	{
		api.POST("/bills/scan/qr", h.ScanQR)
		api.POST("/bills/scan/text", h.ScanText)
		api.POST("/bills/scan/image", h.ScanImage)
		api.POST("/bills", h.CreateBill)
		api.GET("/bills", h.ListBills)
		api.GET("/bills/upcoming", h.UpcomingBills)
		api.PATCH("/bills/:id", h.UpdateBill)
		api.DELETE("/bills/:id", h.DeleteBill)
		api.POST("/bills/:id/payments", h.CreatePayment)
		api.GET("/payments/:id", h.GetPayment)

		api.GET("/analytics/categories", h.CategoryBreakdown)
		api.GET("/analytics/status", h.StatusBreakdown)

		api.GET("/cashback", h.Cashback)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders(UserHeader, "Authorization")
	cfg.AddExposeHeaders("Content-Length")
	return cors.New(cfg)
}

func userMiddleware(defaultUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			userID = defaultUser
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Str("user_id", c.GetString(userIDKey)).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
