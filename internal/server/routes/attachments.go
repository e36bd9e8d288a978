package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"firefly/internal/authz"
	"firefly/internal/models"
)

type AttachmentRoutes struct {
	server ServerInterface
}

func NewAttachmentRoutes(server ServerInterface) *AttachmentRoutes {
	return &AttachmentRoutes{server: server}
}

func (ar *AttachmentRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ar.server)

	attachments := r.Group("/teams/:team/projects/:project/tasks/:id/attachments")
	attachments.Use(middleware.AuthMiddleware())
	attachments.Use(middleware.TeamMiddleware())
	attachments.Use(middleware.ProjectMiddleware())
	attachments.Use(middleware.TaskMiddleware())
	attachments.Use(middleware.Require(memberOrFounder))
	{
		remover := func(c *gin.Context) authz.Predicate {
			return authz.AnyOf(authz.Uploader(currentAttachment(c)), requesterOnly(c))
		}
		attachments.GET("", ar.listAttachmentsHandler)
		attachments.POST("", ar.uploadAttachmentHandler)
		attachments.GET("/:attachment", ar.attachmentMiddleware(), ar.downloadAttachmentHandler)
		attachments.DELETE("/:attachment", ar.attachmentMiddleware(), middleware.Require(remover), ar.deleteAttachmentHandler)
	}
}

func (ar *AttachmentRoutes) attachmentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("attachment"))
		if err != nil {
			abortWithError(c, ar.server.GetLogger(), fmt.Errorf("%w: attachment %q", models.ErrNotFound, c.Param("attachment")))
			return
		}
		a, err := ar.server.GetDB().Attachments.GetForTask(c.Request.Context(), currentTask(c).ID, id)
		if err != nil {
			abortWithError(c, ar.server.GetLogger(), err)
			return
		}
		c.Set("attachment", a)
		c.Next()
	}
}

func currentAttachment(c *gin.Context) *models.Attachment {
	return c.MustGet("attachment").(*models.Attachment)
}

func (ar *AttachmentRoutes) listAttachmentsHandler(c *gin.Context) {
	attachments, err := ar.server.GetAttachments().List(c.Request.Context(), currentTask(c))
	if err != nil {
		abortWithError(c, ar.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": attachments})
}

func (ar *AttachmentRoutes) uploadAttachmentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read the uploaded file"})
		return
	}
	defer file.Close()

	a, err := ar.server.GetAttachments().Upload(c.Request.Context(), currentWorker(c), currentTask(c),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		abortWithError(c, ar.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (ar *AttachmentRoutes) downloadAttachmentHandler(c *gin.Context) {
	url, err := ar.server.GetAttachments().URL(c.Request.Context(), currentAttachment(c))
	if err != nil {
		abortWithError(c, ar.server.GetLogger(), err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (ar *AttachmentRoutes) deleteAttachmentHandler(c *gin.Context) {
	if err := ar.server.GetAttachments().Delete(c.Request.Context(), currentAttachment(c)); err != nil {
		abortWithError(c, ar.server.GetLogger(), err)
		return
	}
	c.Status(http.StatusNoContent)
}
