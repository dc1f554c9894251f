package http

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/adapters/signal"
	"github.com/dkeye/Screen/internal/config"
)

func SetupRouter(cfg *config.Config, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	origins := cfg.Origins()
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	r.GET("/downloads/host-app-win.zip", func(c *gin.Context) {
		path := cfg.HostAppZip
		if path == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "host app download is not configured"})
			return
		}
		if _, err := os.Stat(path); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("path", path).Msg("host app zip missing")
			c.JSON(http.StatusNotFound, gin.H{"error": "host app archive not found"})
			return
		}
		c.FileAttachment(path, "host-app-win.zip")
	})

	r.GET("/ws", ctl.HandleWS)

	log.Info().Str("module", "adapters.http").Strs("origins", origins).Msg("router setup")
	return r
}
