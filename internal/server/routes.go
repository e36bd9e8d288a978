package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firefly/internal/auth"
	"firefly/internal/server/routes"
)

const (
	sessionName   = "firefly-session"
	sessionMaxAge = 14 * 24 * 60 * 60
)

func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(routes.NewMiddleware(s).RequestLogger())

	store := cookie.NewStore([]byte(s.cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// OAuth handshakes share the session key.
	auth.InitGothProviders(s.cfg.OAuth, store)

	if s.cfg.FrontendURL != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{s.cfg.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.NewAuthRoutes(s).RegisterRoutes(r)
	routes.NewUserRoutes(s).RegisterRoutes(r)
	routes.NewTeamRoutes(s).RegisterRoutes(r)
	routes.NewProjectRoutes(s).RegisterRoutes(r)
	routes.NewTaskRoutes(s).RegisterRoutes(r)
	routes.NewAttachmentRoutes(s).RegisterRoutes(r)
	routes.NewNotificationRoutes(s).RegisterRoutes(r)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.db.Health(c.Request.Context())
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
