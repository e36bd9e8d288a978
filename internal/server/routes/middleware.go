package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"firefly/internal/authz"
	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/storage"
)

const (
	sessionWorkerKey = "worker_id"
	sessionNextKey   = "next"
	requestIDHeader  = "X-Request-ID"
)

type Middleware struct {
	server ServerInterface
}

func NewMiddleware(server ServerInterface) *Middleware {
	return &Middleware{server: server}
}

// RequestLogger tags the request with an id and logs it once served.
func (m *Middleware) RequestLogger() gin.HandlerFunc {
	log := m.server.GetLogger()
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		log.InfoWithContext(c.Request.Context(), "request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func loginURL(c *gin.Context) string {
	return "/auth/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}

func sessionWorkerID(session sessions.Session) (uint, bool) {
	switch id := session.Get(sessionWorkerKey).(type) {
	case uint:
		return id, true
	case int:
		return uint(id), id > 0
	}
	return 0, false
}

// AuthMiddleware loads the logged in worker or redirects to the login page.
func (m *Middleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := sessionWorkerID(session)
		if !ok {
			c.Redirect(http.StatusFound, loginURL(c))
			c.Abort()
			return
		}

		worker, err := m.server.GetDB().Workers.Get(c.Request.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			session.Clear()
			_ = session.Save()
			c.Redirect(http.StatusFound, loginURL(c))
			c.Abort()
			return
		}
		if err != nil {
			abortWithError(c, m.server.GetLogger(), err)
			return
		}

		c.Set("worker", worker)
		c.Next()
	}
}

// TeamMiddleware loads the team named by the :team slug.
func (m *Middleware) TeamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := m.server.GetDB().Teams.GetBySlug(c.Request.Context(), c.Param("team"))
		if err != nil {
			abortWithError(c, m.server.GetLogger(), err)
			return
		}
		c.Set("team", team)
		c.Next()
	}
}

// ProjectMiddleware loads the :project slug within the current team.
func (m *Middleware) ProjectMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		team := currentTeam(c)
		project, err := m.server.GetDB().Projects.GetInTeam(c.Request.Context(), team.ID, c.Param("project"))
		if err != nil {
			abortWithError(c, m.server.GetLogger(), err)
			return
		}
		project.Team = *team
		c.Set("project", project)
		c.Next()
	}
}

// TaskMiddleware loads the :id task within the current project.
func (m *Middleware) TaskMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			abortWithError(c, m.server.GetLogger(), fmt.Errorf("%w: task %q", models.ErrNotFound, c.Param("id")))
			return
		}
		task, err := m.server.GetDB().Tasks.Get(c.Request.Context(), uint(id))
		if err == nil && task.ProjectID != currentProject(c).ID {
			err = fmt.Errorf("%w: task %d", models.ErrNotFound, id)
		}
		if err != nil {
			abortWithError(c, m.server.GetLogger(), err)
			return
		}
		c.Set("task", task)
		c.Next()
	}
}

// Require evaluates the predicate built by rule against the current worker.
func (m *Middleware) Require(rule func(c *gin.Context) authz.Predicate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authz.Authorize(currentWorker(c), rule(c)); err != nil {
			abortWithError(c, m.server.GetLogger(), err)
			return
		}
		c.Next()
	}
}

func currentWorker(c *gin.Context) *models.Worker {
	w, _ := c.Get("worker")
	worker, _ := w.(*models.Worker)
	return worker
}

func currentTeam(c *gin.Context) *models.Team {
	return c.MustGet("team").(*models.Team)
}

func currentProject(c *gin.Context) *models.Project {
	return c.MustGet("project").(*models.Project)
}

func currentTask(c *gin.Context) *models.Task {
	return c.MustGet("task").(*models.Task)
}

// Predicates over the resources loaded by the middleware above.
func memberOrFounder(c *gin.Context) authz.Predicate { return authz.MemberOrFounder(currentTeam(c)) }
func founder(c *gin.Context) authz.Predicate         { return authz.Founder(currentTeam(c)) }
func assignee(c *gin.Context) authz.Predicate        { return authz.Assignee(currentTask(c)) }
func requesterOnly(c *gin.Context) authz.Predicate   { return authz.RequesterOnly(currentTask(c)) }
func requester(c *gin.Context) authz.Predicate {
	return authz.Requester(currentTask(c), c.Request.Method)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, authz.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrProtected), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortWithError ends the request with the status matching err.
func abortWithError(c *gin.Context, log logger.Logger, err error) {
	if errors.Is(err, authz.ErrUnauthenticated) {
		c.Redirect(http.StatusFound, loginURL(c))
		c.Abort()
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.ErrorWithContext(c.Request.Context(), "request failed", zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
