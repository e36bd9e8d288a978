package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"firefly/internal/authz"
	"firefly/internal/models"
)

const notificationsPerPage = 20

type NotificationRoutes struct {
	server ServerInterface
}

func NewNotificationRoutes(server ServerInterface) *NotificationRoutes {
	return &NotificationRoutes{server: server}
}

func (nr *NotificationRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(nr.server)

	recipient := func(c *gin.Context) authz.Predicate { return authz.Recipient(currentNotification(c)) }

	notifications := r.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("", nr.listNotificationsHandler)
		notifications.GET("/:id", nr.notificationMiddleware(), middleware.Require(recipient), nr.openNotificationHandler)
		notifications.POST("/:id/read", nr.notificationMiddleware(), middleware.Require(recipient), nr.markNotificationAsReadHandler)
	}
}

// NotificationView is a notification as the API shows it.
type NotificationView struct {
	ID      uint      `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	TaskID  uint      `json:"task_id"`
	TaskURL string    `json:"task_url"`
	SentAt  time.Time `json:"sent_at"`
	IsRead  bool      `json:"is_read"`
}

// notificationViews renders notifications loaded with models.NotificationPreloads.
// A template that fails to render falls back to its raw text.
func notificationViews(ns []models.Notification) []NotificationView {
	views := make([]NotificationView, 0, len(ns))
	for i := range ns {
		n := &ns[i]
		msg, err := n.Message()
		if err != nil {
			msg = n.NotificationType.MessageTemplate
		}
		views = append(views, NotificationView{
			ID:      n.ID,
			Kind:    n.NotificationType.Name,
			Message: msg,
			TaskID:  n.TaskID,
			TaskURL: taskURL(&n.Task),
			SentAt:  n.SentAt,
			IsRead:  n.IsRead,
		})
	}
	return views
}

func (nr *NotificationRoutes) notificationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			abortWithError(c, nr.server.GetLogger(), fmt.Errorf("%w: notification %q", models.ErrNotFound, c.Param("id")))
			return
		}
		n, err := nr.server.GetDB().Notifications.Get(c.Request.Context(), uint(id))
		if err != nil {
			abortWithError(c, nr.server.GetLogger(), err)
			return
		}
		c.Set("notification", n)
		c.Next()
	}
}

func currentNotification(c *gin.Context) *models.Notification {
	return c.MustGet("notification").(*models.Notification)
}

// filter resolves the team and project slugs of the query string.
func (nr *NotificationRoutes) filter(c *gin.Context) (models.NotificationFilter, error) {
	ctx := c.Request.Context()
	db := nr.server.GetDB()

	var f models.NotificationFilter
	if slug := c.Query("team"); slug != "" {
		team, err := db.Teams.GetBySlug(ctx, slug)
		if err != nil {
			return f, err
		}
		f.TeamID = team.ID
	}
	if slug := c.Query("project"); slug != "" {
		var (
			project *models.Project
			err     error
		)
		if f.TeamID != 0 {
			project, err = db.Projects.GetInTeam(ctx, f.TeamID, slug)
		} else {
			project, err = db.Projects.GetBySlug(ctx, slug)
		}
		if err != nil {
			return f, err
		}
		f.ProjectID = project.ID
	}
	return f, nil
}

func (nr *NotificationRoutes) listNotificationsHandler(c *gin.Context) {
	f, err := nr.filter(c)
	if err != nil {
		abortWithError(c, nr.server.GetLogger(), err)
		return
	}

	page, err := nr.server.GetDB().Notifications.Page(c.Request.Context(), currentWorker(c).ID, f,
		c.Query("page"), notificationsPerPage)
	if err != nil {
		abortWithError(c, nr.server.GetLogger(), err)
		return
	}

	c.JSON(http.StatusOK, models.Page[NotificationView]{
		Items:       notificationViews(page.Items),
		Number:      page.Number,
		PerPage:     page.PerPage,
		NumPages:    page.NumPages,
		Total:       page.Total,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	})
}

// openNotificationHandler marks the notification as read and sends the
// recipient to its task.
func (nr *NotificationRoutes) openNotificationHandler(c *gin.Context) {
	n := currentNotification(c)
	if err := nr.server.GetDB().Notifications.MarkAsRead(c.Request.Context(), n); err != nil {
		abortWithError(c, nr.server.GetLogger(), err)
		return
	}
	c.Redirect(http.StatusFound, taskURL(&n.Task))
}

func (nr *NotificationRoutes) markNotificationAsReadHandler(c *gin.Context) {
	if err := nr.server.GetDB().Notifications.MarkAsRead(c.Request.Context(), currentNotification(c)); err != nil {
		abortWithError(c, nr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
