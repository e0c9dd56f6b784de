// Package api assembles the HTTP surface of the console.
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bhandras/netconsole/internal/api/handlers"
	"github.com/bhandras/netconsole/internal/api/middleware"
	"github.com/bhandras/netconsole/internal/crypto"
	"github.com/bhandras/netconsole/internal/websocket"
)

// Deps are the services the routes are served from. Socket may be nil.
type Deps struct {
	JWT            *crypto.JWTManager
	Sessions       handlers.Sessions
	Devices        handlers.Devices
	Profiles       handlers.Profiles
	Socket         *websocket.SocketIOServer
	AllowedOrigins []string
}

// NewRouter creates the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     d.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(d.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.LoggingMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.String(200, "Welcome to netconsole!")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	netconfHandler := handlers.NewNetconfHandler(d.Sessions)
	devicesHandler := handlers.NewDevicesHandler(d.Devices)
	profilesHandler := handlers.NewProfilesHandler(d.Profiles)

	nc := router.Group("/netconf")
	nc.Use(middleware.AuthMiddleware(d.JWT))
	{
		nc.POST("/connect", netconfHandler.Connect)
		nc.GET("/sessions", netconfHandler.ListSessions)
		nc.DELETE("/sessions", netconfHandler.CloseAll)
		nc.DELETE("/session", netconfHandler.Close)
		nc.GET("/session/alive", netconfHandler.Alive)
		nc.GET("/session/capabilities", netconfHandler.Capabilities)
		nc.GET("/session/data", netconfHandler.Data)
		nc.POST("/session/commit", netconfHandler.Commit)

		nc.GET("/devices", devicesHandler.ListDevices)
		nc.POST("/devices", devicesHandler.CreateDevice)
		nc.GET("/devices/:id", devicesHandler.GetDevice)
		nc.DELETE("/devices/:id", devicesHandler.DeleteDevice)

		nc.GET("/profiles", profilesHandler.ListProfiles)
		nc.GET("/profiles/:name", profilesHandler.GetProfile)
		nc.PUT("/profiles/:name", profilesHandler.PutProfile)
		nc.DELETE("/profiles/:name", profilesHandler.DeleteProfile)
	}

	if d.Socket != nil {
		router.Any(websocket.Path, d.Socket.HandleSocketIO())
		router.Any(websocket.Path+"/*any", d.Socket.HandleSocketIO())
	}

	return router
}
