package controlplane

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/fimsync/internal/controlplane/middleware"
	"github.com/openmined/fimsync/internal/metrics"
)

const defaultRate = "20-S"

type routeConfig struct {
	Auth middleware.TokenAuthConfig
	// Rate is a limiter formatted rate, empty uses 20 requests per second
	Rate string
}

func setupRoutes(h *handlers, rc *routeConfig) (http.Handler, error) {
	rate := rc.Rate
	if rate == "" {
		rate = defaultRate
	}
	rateLimiter, err := middleware.RateLimiter(rate)
	if err != nil {
		return nil, fmt.Errorf("control plane rate limiter: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(rateLimiter)

	r.GET("/", h.index)
	r.GET("/healthz", h.health)

	auth := middleware.TokenAuth(rc.Auth)
	r.GET("/metrics", auth, gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth)
	{
		v1.GET("/status", h.status)
		v1.POST("/sync/now", h.syncNow)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
