package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubattendance/internal/auth"
	"clubattendance/internal/httpmiddleware"
)

// RouterOptions tunes middleware.
type RouterOptions struct {
	RateLimitPerMin int
	Production      bool
}

// NewRouter mounts every route on a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    h.log.Writer(),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders(opts.Production))
	r.Use(httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.GET("/attendance/status", h.Status)
	v1.POST("/attendance/checkin", h.CheckIn)
	v1.POST("/admin/login", h.Login)
	v1.POST("/admin/refresh", h.Refresh)

	admin := v1.Group("/attendance", auth.Bearer(h.signer), auth.RequireRole(auth.RoleAdmin))
	admin.POST("/admin", h.AdminAction)
	admin.GET("/records", h.ListRecords)
	admin.GET("/records/:id", h.GetRecord)
	admin.PATCH("/records/:id", h.ReviewRecord)
	admin.GET("/weeks/:week/summary", h.WeekSummary)

	return r
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
