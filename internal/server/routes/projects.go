package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"firefly/internal/models"
	"firefly/internal/service"
)

type ProjectRoutes struct {
	server ServerInterface
}

func NewProjectRoutes(server ServerInterface) *ProjectRoutes {
	return &ProjectRoutes{server: server}
}

func (pr *ProjectRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(pr.server)

	project := r.Group("/teams/:team/projects/:project")
	project.Use(middleware.AuthMiddleware())
	project.Use(middleware.TeamMiddleware())
	project.Use(middleware.ProjectMiddleware())
	{
		project.GET("", middleware.Require(memberOrFounder), pr.getProjectHandler)
		project.PUT("", middleware.Require(founder), pr.updateProjectHandler)
		project.DELETE("", middleware.Require(founder), pr.deleteProjectHandler)
		project.GET("/members/:username/tasks", middleware.Require(memberOrFounder), pr.memberTasksHandler)
	}
}

func (pr *ProjectRoutes) getProjectHandler(c *gin.Context) {
	ctx := c.Request.Context()
	project := currentProject(c)
	db := pr.server.GetDB()

	tasks, err := db.Tasks.ForProject(ctx, project.ID)
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}
	unread, err := db.Notifications.Unread(ctx, currentWorker(c).ID, models.NotificationFilter{ProjectID: project.ID})
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"team":    currentTeam(c),
		"tasks":   tasks,
		"unread":  notificationViews(unread),
	})
}

func (pr *ProjectRoutes) updateProjectHandler(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	project, err := pr.server.GetTeams().UpdateProject(c.Request.Context(), currentProject(c), req)
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (pr *ProjectRoutes) deleteProjectHandler(c *gin.Context) {
	if err := pr.server.GetTeams().DeleteProject(c.Request.Context(), currentProject(c)); err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// memberTasksHandler pages through the tasks a team member requested and
// the tasks assigned to them in this project.
func (pr *ProjectRoutes) memberTasksHandler(c *gin.Context) {
	ctx := c.Request.Context()
	db := pr.server.GetDB()
	team := currentTeam(c)
	project := currentProject(c)

	member, err := db.Workers.GetByUsername(ctx, c.Param("username"))
	if err == nil && !team.HasMember(member.ID) {
		err = fmt.Errorf("%w: %s is not a member of %s", models.ErrNotFound, member.Username, team.Slug)
	}
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}

	perPage := pr.server.GetConfig().Tasks.PerPage
	requested, err := models.Paginate[models.Task](db.Tasks.Requested(ctx, member.ID, project.ID),
		c.Query("rt_page"), perPage, "Requester", "Assignees")
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}
	assigned, err := models.Paginate[models.Task](db.Tasks.Assigned(ctx, member.ID, project.ID),
		c.Query("at_page"), perPage, "Requester", "Assignees")
	if err != nil {
		abortWithError(c, pr.server.GetLogger(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member":    member,
		"requested": requested,
		"assigned":  assigned,
	})
}
