package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zhenghchen/calhacks2025/src/config"
	"github.com/zhenghchen/calhacks2025/src/logging"
)

// New builds the HTTP API around an evaluator. store may be nil, in which
// case decisions are returned but not kept.
func New(cfg config.Config, ev Evaluator, store DecisionStore, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	attachRoutes(r, cfg, ev, store, log)
	return r
}

func attachRoutes(r *gin.Engine, cfg config.Config, ev Evaluator, store DecisionStore, log logging.Logger) {
	corsCfg := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	// cors refuses an empty origin list.
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	evalH := NewEvaluations(ev, store, cfg.MaxTranscriptBytes, log)
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	v1 := r.Group("/v1")
	{
		v1.POST("/evaluations", RateLimitMiddleware(limiter), evalH.Create)
		v1.GET("/evaluations", evalH.List)
		v1.GET("/evaluations/:id", evalH.Get)
	}
}
