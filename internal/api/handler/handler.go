package handler

import (
	"log/slog"

	"github.com/cuongbtq/reminder-be/internal/scheduler"
)

// UserIDKey is the gin context key the auth middleware stores the caller
// identity under.
const UserIDKey = "user_id"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service *scheduler.Service
}

// JobHandler handles reminder job HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	service *scheduler.Service
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}
