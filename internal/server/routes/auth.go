package routes

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"go.uber.org/zap"

	"firefly/internal/auth"
	"firefly/internal/config"
	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/service"
)

type AuthRoutes struct {
	server ServerInterface
}

type ServerInterface interface {
	GetDB() *models.DB
	GetLogger() logger.Logger
	GetConfig() *config.Config
	GetTasks() *service.TaskService
	GetAccounts() *service.AccountService
	GetAttachments() *service.AttachmentService
	GetTeams() *service.TeamService
}

func NewAuthRoutes(server ServerInterface) *AuthRoutes {
	return &AuthRoutes{server: server}
}

func (ar *AuthRoutes) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/login", ar.loginHandler)
	r.GET("/auth/:provider", ar.authHandler)
	r.GET("/auth/:provider/callback", ar.authCallbackHandler)
	r.GET("/logout", ar.logoutHandler)
}

// safeNext keeps only local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}

// gothRequest rewrites the request the way gothic expects to find the provider.
func gothRequest(c *gin.Context, path string) *http.Request {
	provider := c.Param("provider")

	req := c.Request.Clone(c.Request.Context())
	req.URL.Path = path

	q := req.URL.Query()
	q.Set("provider", provider)
	req.URL.RawQuery = q.Encode()
	return req
}

func (ar *AuthRoutes) loginHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": auth.Providers(),
		"next":      safeNext(c.Query("next")),
	})
}

func (ar *AuthRoutes) authHandler(c *gin.Context) {
	provider := c.Param("provider")
	if _, err := goth.GetProvider(provider); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider"})
		return
	}

	session := sessions.Default(c)
	if next := safeNext(c.Query("next")); next != "" {
		session.Set(sessionNextKey, next)
	} else {
		session.Delete(sessionNextKey)
	}
	if err := session.Save(); err != nil {
		abortWithError(c, ar.server.GetLogger(), err)
		return
	}

	gothic.BeginAuthHandler(c.Writer, gothRequest(c, "/auth/"+provider))
}

func (ar *AuthRoutes) authCallbackHandler(c *gin.Context) {
	provider := c.Param("provider")
	log := ar.server.GetLogger()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, gothRequest(c, "/auth/"+provider+"/callback"))
	if err != nil {
		log.WarnWithContext(c.Request.Context(), "oauth callback failed",
			zap.String("provider", provider), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, created, err := ar.server.GetAccounts().LoginFromProvider(c.Request.Context(), service.Identity{
		Provider:   gothUser.Provider,
		ProviderID: gothUser.UserID,
		NickName:   gothUser.NickName,
		Email:      gothUser.Email,
		FirstName:  gothUser.FirstName,
		LastName:   gothUser.LastName,
		Name:       gothUser.Name,
		AvatarURL:  gothUser.AvatarURL,
	})
	if err != nil {
		abortWithError(c, log, err)
		return
	}

	session := sessions.Default(c)
	next, _ := session.Get(sessionNextKey).(string)
	session.Delete(sessionNextKey)
	session.Set(sessionWorkerKey, worker.ID)
	if err := session.Save(); err != nil {
		abortWithError(c, log, err)
		return
	}
	log.InfoWithContext(c.Request.Context(), "worker logged in",
		zap.String("username", worker.Username), zap.String("provider", provider), zap.Bool("created", created))

	switch {
	case next != "":
		c.Redirect(http.StatusFound, next)
	case ar.server.GetConfig().FrontendURL != "":
		c.Redirect(http.StatusFound, ar.server.GetConfig().FrontendURL)
	default:
		c.Redirect(http.StatusFound, "/accounts/profile")
	}
}

func (ar *AuthRoutes) logoutHandler(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()

	_ = gothic.Logout(c.Writer, c.Request)
	c.Redirect(http.StatusFound, "/auth/login")
}
