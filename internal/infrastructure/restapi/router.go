package restapi

import (
	"net/http/pprof"

	"portfolio_aggregator/internal/infrastructure/configloader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// specRoute is where the OpenAPI document is served for the swagger UI.
const specRoute = "/docs/swagger.yaml"

// RouterOptions selects the optional parts of the HTTP surface.
type RouterOptions struct {
	AllowOrigins []string
	EnablePprof  bool
	Swagger      configloader.SwaggerConfig
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(h *AggregateHandler, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 || lo.Contains(opts.AllowOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"X-Cache", RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.Use(ZapLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/get_all/:chain_id/:address", h.GetAll)
	router.GET("/balance_csv/:chain_id/:address", h.BalanceExport)
	router.GET("/transactions_csv/:chain_id/:address", h.TransactionsExport)
	router.DELETE("/cache/:chain_id/:address", h.Invalidate)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.Swagger.Enabled {
		router.StaticFile(specRoute, opts.Swagger.SpecFile)
		router.GET(opts.Swagger.Path+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(specRoute)))
		logger.Info("Swagger UI enabled", zap.String("path", opts.Swagger.Path+"/index.html"))
	}

	if opts.EnablePprof {
		pprofRouter := router.Group("/debug/pprof")
		{
			pprofRouter.GET("/", gin.WrapF(pprof.Index))
			pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
			pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
			for _, profile := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
				pprofRouter.GET("/"+profile, gin.WrapH(pprof.Handler(profile)))
			}
		}
		logger.Info("Pprof endpoints enabled under /debug/pprof")
	}

	return router
}
