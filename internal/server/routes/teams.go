package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"firefly/internal/models"
	"firefly/internal/service"
)

type TeamRoutes struct {
	server ServerInterface
}

func NewTeamRoutes(server ServerInterface) *TeamRoutes {
	return &TeamRoutes{server: server}
}

func (tr *TeamRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(tr.server)

	r.GET("/teams", middleware.AuthMiddleware(), tr.listTeamsHandler)
	r.POST("/teams", middleware.AuthMiddleware(), tr.createTeamHandler)

	team := r.Group("/teams/:team")
	team.Use(middleware.AuthMiddleware())
	team.Use(middleware.TeamMiddleware())
	{
		team.GET("", middleware.Require(memberOrFounder), tr.getTeamHandler)
		team.PUT("", middleware.Require(founder), tr.updateTeamHandler)
		team.DELETE("", middleware.Require(founder), tr.deleteTeamHandler)
		team.DELETE("/members/:username", middleware.Require(founder), tr.kickMemberHandler)
		team.POST("/projects", middleware.Require(founder), tr.createProjectHandler)
	}
}

func (tr *TeamRoutes) listTeamsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	worker := currentWorker(c)
	db := tr.server.GetDB()

	involved, err := db.Teams.Involving(ctx, worker.ID)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	founded, err := db.Teams.FoundedBy(ctx, worker.ID)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"involved": involved, "founded": founded})
}

func (tr *TeamRoutes) createTeamHandler(c *gin.Context) {
	var req service.TeamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	team, err := tr.server.GetTeams().Create(c.Request.Context(), currentWorker(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (tr *TeamRoutes) getTeamHandler(c *gin.Context) {
	ctx := c.Request.Context()
	team := currentTeam(c)
	db := tr.server.GetDB()

	projects, err := db.Projects.ForTeam(ctx, team.ID)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	unread, err := db.Notifications.Unread(ctx, currentWorker(c).ID, models.NotificationFilter{TeamID: team.ID})
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team":     team,
		"projects": projects,
		"unread":   notificationViews(unread),
	})
}

func (tr *TeamRoutes) updateTeamHandler(c *gin.Context) {
	var req service.TeamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	team, err := tr.server.GetTeams().Update(c.Request.Context(), currentTeam(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (tr *TeamRoutes) deleteTeamHandler(c *gin.Context) {
	if err := tr.server.GetTeams().Delete(c.Request.Context(), currentTeam(c)); err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (tr *TeamRoutes) kickMemberHandler(c *gin.Context) {
	if err := tr.server.GetTeams().Kick(c.Request.Context(), currentTeam(c), c.Param("username")); err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (tr *TeamRoutes) createProjectHandler(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	project, err := tr.server.GetTeams().CreateProject(c.Request.Context(), currentTeam(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, project)
}
