package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"firefly/internal/authz"
	"firefly/internal/models"
	"firefly/internal/service"
)

type UserRoutes struct {
	server ServerInterface
}

func NewUserRoutes(server ServerInterface) *UserRoutes {
	return &UserRoutes{server: server}
}

func (ur *UserRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ur.server)

	accounts := r.Group("/accounts")
	accounts.Use(middleware.AuthMiddleware())
	{
		accounts.GET("/profile", ur.ownProfileHandler)
		accounts.PUT("/profile", ur.updateProfileHandler)
		accounts.DELETE("/profile", ur.deleteAccountHandler)

		self := func(c *gin.Context) authz.Predicate { return authz.Self(profileWorker(c)) }
		accounts.GET("/:username/profile", ur.profileMiddleware(), ur.profileHandler)
		accounts.PUT("/:username/profile", ur.profileMiddleware(), middleware.Require(self), ur.updateProfileHandler)
		accounts.DELETE("/:username/profile", ur.profileMiddleware(), middleware.Require(self), ur.deleteAccountHandler)
	}

	positions := r.Group("/positions")
	positions.Use(middleware.AuthMiddleware())
	{
		positions.GET("", ur.listPositionsHandler)
		positions.POST("", ur.createPositionHandler)
		positions.DELETE("/:id", ur.deletePositionHandler)
	}
}

func (ur *UserRoutes) profileMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		worker, err := ur.server.GetDB().Workers.GetByUsername(c.Request.Context(), c.Param("username"))
		if err != nil {
			abortWithError(c, ur.server.GetLogger(), err)
			return
		}
		c.Set("profile", worker)
		c.Next()
	}
}

func profileWorker(c *gin.Context) *models.Worker {
	return c.MustGet("profile").(*models.Worker)
}

func (ur *UserRoutes) ownProfileHandler(c *gin.Context) {
	c.Redirect(http.StatusFound, "/accounts/"+currentWorker(c).Username+"/profile")
}

func (ur *UserRoutes) profileHandler(c *gin.Context) {
	worker := profileWorker(c)
	teams, err := ur.server.GetDB().Teams.MemberOrFounderOf(c.Request.Context(), worker.ID)
	if err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worker":    worker,
		"full_name": worker.FullName(),
		"teams":     teams,
		"is_self":   worker.ID == currentWorker(c).ID,
	})
}

// updateProfileHandler always edits the logged in worker. The
// /:username variant has already checked that it is the same one.
func (ur *UserRoutes) updateProfileHandler(c *gin.Context) {
	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	worker, err := ur.server.GetAccounts().UpdateProfile(c.Request.Context(), currentWorker(c), req)
	if err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, worker)
}

func (ur *UserRoutes) deleteAccountHandler(c *gin.Context) {
	if err := ur.server.GetAccounts().DeleteAccount(c.Request.Context(), currentWorker(c)); err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Status(http.StatusNoContent)
}

func (ur *UserRoutes) listPositionsHandler(c *gin.Context) {
	positions, err := ur.server.GetDB().Positions.All(c.Request.Context())
	if err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

type CreatePositionRequest struct {
	Name string `json:"name" binding:"required"`
}

func (ur *UserRoutes) createPositionHandler(c *gin.Context) {
	var req CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Position name is required"})
		return
	}

	pos := &models.Position{Name: req.Name}
	if err := ur.server.GetDB().Positions.Create(c.Request.Context(), pos); err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (ur *UserRoutes) deletePositionHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position ID"})
		return
	}
	if err := ur.server.GetDB().Positions.Delete(c.Request.Context(), uint(id)); err != nil {
		abortWithError(c, ur.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}
