package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"firefly/internal/models"
	"firefly/internal/service"
)

type TaskRoutes struct {
	server ServerInterface
}

func NewTaskRoutes(server ServerInterface) *TaskRoutes {
	return &TaskRoutes{server: server}
}

func (tr *TaskRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(tr.server)

	project := r.Group("/teams/:team/projects/:project")
	project.Use(middleware.AuthMiddleware())
	project.Use(middleware.TeamMiddleware())
	project.Use(middleware.ProjectMiddleware())
	{
		project.POST("/tasks", middleware.Require(memberOrFounder), tr.createTaskHandler)
		project.POST("/members/:username/tasks", middleware.Require(memberOrFounder), tr.assignTaskHandler)
	}

	task := project.Group("/tasks/:id")
	task.Use(middleware.TaskMiddleware())
	{
		task.GET("", middleware.Require(memberOrFounder), tr.getTaskHandler)
		task.PUT("", middleware.Require(requester), tr.updateTaskHandler)
		task.DELETE("", middleware.Require(requester), tr.deleteTaskHandler)
		task.POST("/review", middleware.Require(assignee), tr.requestReviewHandler)
		task.POST("/complete", middleware.Require(requesterOnly), tr.completeTaskHandler)
	}
}

// taskURL is where a task is shown. task.Project.Team must be loaded.
func taskURL(task *models.Task) string {
	return fmt.Sprintf("/teams/%s/projects/%s/tasks/%d", task.Project.Team.Slug, task.Project.Slug, task.ID)
}

type taskView struct {
	*models.Task
	URL string `json:"url"`
}

func (tr *TaskRoutes) createTaskHandler(c *gin.Context) {
	var req service.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, _, err := tr.server.GetTasks().Create(c.Request.Context(), currentWorker(c), currentProject(c), currentTeam(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, taskView{Task: task, URL: taskURL(task)})
}

func (tr *TaskRoutes) assignTaskHandler(c *gin.Context) {
	var req service.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	assignee, err := tr.server.GetDB().Workers.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}

	task, _, err := tr.server.GetTasks().Assign(ctx, currentWorker(c), assignee, currentProject(c), currentTeam(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, taskView{Task: task, URL: taskURL(task)})
}

func (tr *TaskRoutes) getTaskHandler(c *gin.Context) {
	ctx := c.Request.Context()
	task := currentTask(c)
	db := tr.server.GetDB()

	unread, err := db.Notifications.Unread(ctx, currentWorker(c).ID, models.NotificationFilter{TaskID: task.ID})
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	attachments, err := tr.server.GetAttachments().List(ctx, task)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":        taskView{Task: task, URL: taskURL(task)},
		"attachments": attachments,
		"unread":      notificationViews(unread),
	})
}

func (tr *TaskRoutes) updateTaskHandler(c *gin.Context) {
	var req service.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, _, err := tr.server.GetTasks().Update(c.Request.Context(), currentWorker(c), currentTask(c), req)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, taskView{Task: task, URL: taskURL(task)})
}

func (tr *TaskRoutes) deleteTaskHandler(c *gin.Context) {
	if err := tr.server.GetTasks().Delete(c.Request.Context(), currentTask(c)); err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (tr *TaskRoutes) requestReviewHandler(c *gin.Context) {
	task := currentTask(c)
	_, err := tr.server.GetTasks().RequestReview(c.Request.Context(), currentWorker(c), task)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.Redirect(http.StatusFound, taskURL(task))
}

func (tr *TaskRoutes) completeTaskHandler(c *gin.Context) {
	task := currentTask(c)
	_, err := tr.server.GetTasks().Complete(c.Request.Context(), currentWorker(c), task)
	if err != nil {
		abortWithError(c, tr.server.GetLogger(), err)
		return
	}
	c.Redirect(http.StatusFound, taskURL(task))
}
