package server

import (
	"fmt"
	"net/http"
	"time"

	"firefly/internal/config"
	"firefly/internal/database"
	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/notify"
	"firefly/internal/service"
	"firefly/internal/storage"
)

type Server struct {
	cfg    *config.Config
	db     database.Service
	logger logger.Logger

	tasks       *service.TaskService
	accounts    *service.AccountService
	attachments *service.AttachmentService
	teams       *service.TeamService
}

func (s *Server) GetDB() *models.DB {
	return s.db.Models()
}

func (s *Server) GetLogger() logger.Logger {
	return s.logger
}

func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

func (s *Server) GetTasks() *service.TaskService {
	return s.tasks
}

func (s *Server) GetAccounts() *service.AccountService {
	return s.accounts
}

func (s *Server) GetAttachments() *service.AttachmentService {
	return s.attachments
}

func (s *Server) GetTeams() *service.TeamService {
	return s.teams
}

// New wires the services over db. store may be nil, in which case the
// attachment endpoints answer 503.
func New(cfg *config.Config, db database.Service, store storage.ObjectStore, log logger.Logger) *Server {
	m := db.Models()
	dispatcher := notify.NewDispatcher(m, log)

	return &Server{
		cfg:         cfg,
		db:          db,
		logger:      log,
		tasks:       service.NewTaskService(m, dispatcher, store, log),
		accounts:    service.NewAccountService(m, log),
		attachments: service.NewAttachmentService(m, store, log),
		teams:       service.NewTeamService(m, store, log),
	}
}

// HTTPServer returns the http.Server serving s on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
